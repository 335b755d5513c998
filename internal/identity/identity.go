// Package identity carries the authenticated caller through a request.
package identity

import "context"

// PreferredUsernameClaim names the claim holding the caller's email.
const PreferredUsernameClaim = "preferred_username"

// Email is an optional email address. The zero value means no email, which
// is not the same as an empty address.
type Email struct {
	Address string
	Valid   bool
}

// NoEmail is the missing email.
var NoEmail = Email{}

// SomeEmail wraps a known address, possibly empty.
func SomeEmail(address string) Email {
	return Email{Address: address, Valid: true}
}

func (e Email) String() string {
	if !e.Valid {
		return "<none>"
	}
	return e.Address
}

// Identity is an authenticated caller: the stored session it came from, its
// claims and the bearer token used against the primary provider.
type Identity struct {
	SessionID   string
	Claims      map[string]string
	AccessToken string
}

// Authenticated reports whether the identity came from a valid session.
func (id *Identity) Authenticated() bool {
	return id != nil && id.SessionID != ""
}

// Claim returns a claim value, if present.
func (id *Identity) Claim(name string) (string, bool) {
	if id == nil {
		return "", false
	}
	v, ok := id.Claims[name]
	return v, ok
}

// ResolveEmail picks the email for a request: an explicit parameter always
// wins, then the preferred_username claim, else no email.
func ResolveEmail(param Email, id *Identity) Email {
	if param.Valid {
		return param
	}
	if v, ok := id.Claim(PreferredUsernameClaim); ok {
		return SomeEmail(v)
	}
	return NoEmail
}

type identityKey struct{}

// WithIdentity stores the identity in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity from context, if present.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

package transport

import (
	"context"
	"net/http"

	"github.com/rpggio/timeline/internal/graph"
	"github.com/rpggio/timeline/internal/identity"
)

type graphOp func(PrimaryAdapter, context.Context, *graph.Client, identity.Email, graph.Challenger) string

// caller is the per-request state of an authenticated view.
type caller struct {
	id     *identity.Identity
	email  identity.Email
	client *graph.Client
	ch     *challenger
}

// authenticate returns the caller, or nil for anonymous requests. With
// honorParam the email query parameter, when present, overrides the claim.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, honorParam bool) *caller {
	id, ok := identity.FromContext(r.Context())
	if !ok || !id.Authenticated() {
		return nil
	}
	param := identity.NoEmail
	if honorParam {
		if values, ok := r.URL.Query()["email"]; ok {
			param = identity.SomeEmail(values[0])
		}
	}
	return &caller{
		id:     id,
		email:  identity.ResolveEmail(param, id),
		client: s.services.Clients(id),
		ch:     &challenger{w: w, id: id, sessions: s.services.Sessions, logger: s.logger},
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	c := s.authenticate(w, r, true)
	if c == nil {
		writeView(w, http.StatusOK, View{Title: TitleHome})
		return
	}
	ctx := r.Context()
	view := View{
		Title:    TitleHome,
		Email:    c.email.Address,
		Response: s.services.Graph.UserProfile(ctx, c.client, c.email, c.ch),
		Picture:  s.services.Graph.UserPhoto(ctx, c.client, c.email, c.ch),
	}
	writeView(w, c.ch.status(), view)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	c := s.authenticate(w, r, true)
	if c == nil {
		writeView(w, http.StatusOK, View{Title: TitleTimeline})
		return
	}
	items, err := s.services.Timeline.Timeline(r.Context(), s.services.Graph.Source(c.client), c.email)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, View{Title: TitleTimeline, Email: c.email.Address, Items: items})
}

func (s *Server) graphView(title string, honorParam bool, op graphOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.authenticate(w, r, honorParam)
		if c == nil {
			writeView(w, http.StatusOK, View{Title: title})
			return
		}
		response := op(s.services.Graph, r.Context(), c.client, c.email, c.ch)
		writeView(w, c.ch.status(), View{Title: title, Email: c.email.Address, Response: response})
	}
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	c := s.authenticate(w, r, false)
	if c == nil {
		writeView(w, http.StatusOK, View{Title: TitleDocuments})
		return
	}
	raw, err := s.services.Documents.RecentDocuments(r.Context(), c.email)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, View{Title: TitleDocuments, Email: c.email.Address, Response: raw})
}

package graph

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/rpggio/timeline/internal/domain/activity"
	"github.com/rpggio/timeline/internal/identity"
)

const (
	msgEmailMissing = "Email address cannot be null."
	msgUnknown      = "An unknown error has occurred."

	jpegDataURIPrefix = "data:image/jpeg;base64,"
)

// Challenger forces the caller to authenticate again.
type Challenger interface {
	Challenge(ctx context.Context)
}

// Service fetches the caller's resources from the primary provider and turns
// every outcome into a JSON payload for the view.
type Service struct {
	logger *slog.Logger
}

// NewService creates a new primary provider adapter.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{logger: logger}
}

type messagePayload struct {
	Message string `json:"message"`
}

func messageJSON(msg string) string {
	data, _ := json.MarshalIndent(messagePayload{Message: msg}, "", "  ")
	return string(data)
}

// MissingEmailPayload is returned by every operation called without an email.
func MissingEmailPayload() string {
	return messageJSON(msgEmailMissing)
}

// Normalize turns a failed call into the payload shown in place of data.
// A token-not-found failure also challenges the caller.
func (s *Service) Normalize(ctx context.Context, email string, err error, ch Challenger) string {
	gerr, ok := asError(err)
	if !ok {
		s.logger.Warn("graph request failed", "error", err)
		return messageJSON(msgUnknown)
	}
	switch gerr.Code {
	case CodeNotFound:
		return messageJSON(fmt.Sprintf("User '%s' was not found.", email))
	case CodeInvalidUser:
		return messageJSON(fmt.Sprintf("The requested user '%s' is invalid.", email))
	case CodeAuthenticationFailure:
		return messageJSON(gerr.Message)
	case CodeTokenNotFound:
		s.challenge(ctx, ch)
		return messageJSON(gerr.Message)
	case CodeAccessDenied:
		return messageJSON(gerr.Message)
	case CodePhotoEndpoint, CodeUnknown:
		s.logger.Warn("unrecognized graph error", "code", gerr.Raw, "status", gerr.Status, "message", gerr.Message)
		return messageJSON(msgUnknown)
	}
	return messageJSON(msgUnknown)
}

func (s *Service) challenge(ctx context.Context, ch Challenger) {
	if ch == nil {
		s.logger.Warn("token not found and no challenger available")
		return
	}
	ch.Challenge(ctx)
}

// UserProfile returns the user object as indented JSON.
func (s *Service) UserProfile(ctx context.Context, c *Client, email identity.Email, ch Challenger) string {
	if !email.Valid {
		return MissingEmailPayload()
	}
	body, err := c.get(ctx, c.baseURL, userPath(email.Address), nil)
	if err != nil {
		return s.Normalize(ctx, email.Address, err, ch)
	}
	return indentJSON(body)
}

// UserCalendar returns the user's events, newest created first. The order is
// requested from the provider.
func (s *Service) UserCalendar(ctx context.Context, c *Client, email identity.Email, ch Challenger) string {
	query := url.Values{"$orderby": {"createdDateTime DESC"}}
	return s.collectionJSON(ctx, c, email, ch, query, "events")
}

// UserInsights returns the documents the user recently used.
func (s *Service) UserInsights(ctx context.Context, c *Client, email identity.Email, ch Challenger) string {
	return s.collectionJSON(ctx, c, email, ch, nil, "insights", "used")
}

// UserFiles returns the user's recent drive items.
func (s *Service) UserFiles(ctx context.Context, c *Client, email identity.Email, ch Challenger) string {
	return s.collectionJSON(ctx, c, email, ch, nil, "drive", "recent")
}

// UserReceivedMail returns the messages in the user's inbox.
func (s *Service) UserReceivedMail(ctx context.Context, c *Client, email identity.Email, ch Challenger) string {
	return s.collectionJSON(ctx, c, email, ch, nil, "mailFolders", "inbox", "messages")
}

// UserSentMail returns the messages in the user's sent items.
func (s *Service) UserSentMail(ctx context.Context, c *Client, email identity.Email, ch Challenger) string {
	return s.collectionJSON(ctx, c, email, ch, nil, "mailFolders", "sentitems", "messages")
}

func (s *Service) collectionJSON(ctx context.Context, c *Client, email identity.Email, ch Challenger, query url.Values, rest ...string) string {
	if !email.Valid {
		return MissingEmailPayload()
	}
	items, err := list[json.RawMessage](ctx, c, userPath(email.Address, rest...), query)
	if err != nil {
		return s.Normalize(ctx, email.Address, err, ch)
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return s.Normalize(ctx, email.Address, err, ch)
	}
	return string(data)
}

// UserPhoto returns the user's photo as a data URI. A missing photo yields
// the placeholder avatar. Consumer accounts are retried once against the beta
// endpoint. Failures with no sensible image yield an empty string.
func (s *Service) UserPhoto(ctx context.Context, c *Client, email identity.Email, ch Challenger) string {
	if !email.Valid {
		return MissingEmailPayload()
	}
	data, err := s.photo(ctx, c, email.Address)
	if err == nil {
		return jpegDataURIPrefix + base64.StdEncoding.EncodeToString(data)
	}
	if gerr, ok := asError(err); ok {
		switch gerr.Code {
		case CodeNotFound, CodeInvalidUser:
			return PlaceholderPhoto()
		case CodeTokenNotFound:
			s.challenge(ctx, ch)
			return ""
		case CodeAuthenticationFailure, CodeAccessDenied, CodePhotoEndpoint, CodeUnknown:
		}
	}
	s.logger.Warn("loading photo failed", "email", email.Address, "error", err)
	return ""
}

func (s *Service) photo(ctx context.Context, c *Client, email string) ([]byte, error) {
	path := userPath(email, "photo", "$value")
	data, err := c.get(ctx, c.baseURL, path, nil)
	if gerr, ok := asError(err); ok && gerr.Code == CodePhotoEndpoint {
		s.logger.Debug("retrying photo on beta endpoint", "email", email)
		return c.get(ctx, c.betaBaseURL, path, nil)
	}
	return data, err
}

// AllItems lists events, insights, recent files, received and sent mail as
// timeline items. The calls run in that order and the first failure aborts
// the whole listing. Without an email it returns an empty list.
func (s *Service) AllItems(ctx context.Context, c *Client, email identity.Email) ([]activity.Item, error) {
	items := []activity.Item{}
	if !email.Valid {
		return items, nil
	}
	addr := email.Address

	events, err := list[event](ctx, c, userPath(addr, "events"), nil)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	items = appendItems(items, events, event.item)

	insights, err := list[insight](ctx, c, userPath(addr, "insights", "used"), nil)
	if err != nil {
		return nil, fmt.Errorf("listing insights: %w", err)
	}
	items = appendItems(items, insights, insight.item)

	files, err := list[driveItem](ctx, c, userPath(addr, "drive", "recent"), nil)
	if err != nil {
		return nil, fmt.Errorf("listing recent files: %w", err)
	}
	items = appendItems(items, files, driveItem.item)

	received, err := list[message](ctx, c, userPath(addr, "mailFolders", "inbox", "messages"), nil)
	if err != nil {
		return nil, fmt.Errorf("listing received mail: %w", err)
	}
	items = appendItems(items, received, messageItem(activity.TypeReceivedEmail))

	sent, err := list[message](ctx, c, userPath(addr, "mailFolders", "sentitems", "messages"), nil)
	if err != nil {
		return nil, fmt.Errorf("listing sent mail: %w", err)
	}
	items = appendItems(items, sent, messageItem(activity.TypeSentEmail))

	s.logger.Debug("graph items listed", "email", addr, "count", len(items))
	return items, nil
}

func appendItems[T any](items []activity.Item, records []T, toItem func(T) activity.Item) []activity.Item {
	for _, r := range records {
		items = append(items, toItem(r))
	}
	return items
}

// Source binds the adapter to one client for the timeline aggregator.
func (s *Service) Source(c *Client) activity.PrimarySource {
	return boundSource{svc: s, client: c}
}

type boundSource struct {
	svc    *Service
	client *Client
}

func (b boundSource) AllItems(ctx context.Context, email identity.Email) ([]activity.Item, error) {
	return b.svc.AllItems(ctx, b.client, email)
}

func indentJSON(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}

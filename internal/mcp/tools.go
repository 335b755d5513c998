package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/timeline/internal/graph"
	"github.com/rpggio/timeline/internal/identity"
)

type graphOp func(GraphService, context.Context, *graph.Client, identity.Email, graph.Challenger) string

type resourceSpec struct {
	op         graphOp
	honorEmail bool
}

var graphResources = map[string]resourceSpec{
	"profile":       {op: GraphService.UserProfile, honorEmail: true},
	"photo":         {op: GraphService.UserPhoto, honorEmail: true},
	"calendar":      {op: GraphService.UserCalendar, honorEmail: true},
	"insights":      {op: GraphService.UserInsights},
	"files":         {op: GraphService.UserFiles},
	"received_mail": {op: GraphService.UserReceivedMail},
	"sent_mail":     {op: GraphService.UserSentMail},
}

const resourceDocuments = "documents"

type toolHandlers struct {
	services Services
	logger   *slog.Logger
}

func registerTools(server *sdkmcp.Server, services Services, logger *slog.Logger) {
	h := &toolHandlers{services: services, logger: logger}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_timeline",
		Description: "Get the signed-in user's activity (calendar, files, mail, documents) merged newest first",
	}, h.getTimeline)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_resource",
		Description: "Get one raw resource of the signed-in user as JSON text",
	}, h.getResource)
}

func (h *toolHandlers) getTimeline(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetTimelineParams) (*sdkmcp.CallToolResult, any, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return errorResult(ErrUnauthorized), nil, nil
	}
	email := identity.ResolveEmail(emailParam(in.Email), id)
	client := h.services.Clients(id)

	items, err := h.services.Timeline.Timeline(ctx, h.services.Graph.Source(client), email)
	if err != nil {
		h.logger.Warn("get_timeline failed", "session_id", id.SessionID, "error", err)
		return errorResult(err), nil, nil
	}
	return jsonResult(TimelineResult{Email: email.Address, Items: items}, false), nil, nil
}

func (h *toolHandlers) getResource(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetResourceParams) (*sdkmcp.CallToolResult, any, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return errorResult(ErrUnauthorized), nil, nil
	}

	if in.Resource == resourceDocuments {
		email := identity.ResolveEmail(identity.NoEmail, id)
		raw, err := h.services.Documents.RecentDocuments(ctx, email)
		if err != nil {
			h.logger.Warn("get_resource failed", "resource", in.Resource, "session_id", id.SessionID, "error", err)
			return errorResult(err), nil, nil
		}
		return jsonResult(ResourceResult{Resource: in.Resource, Email: email.Address, Response: raw}, false), nil, nil
	}

	spec, ok := graphResources[in.Resource]
	if !ok {
		return errorResult(fmt.Errorf("%w: %q", ErrUnknownResource, in.Resource)), nil, nil
	}
	param := identity.NoEmail
	if spec.honorEmail {
		param = emailParam(in.Email)
	}
	email := identity.ResolveEmail(param, id)
	ch := &challenger{id: id, sessions: h.services.Sessions, logger: h.logger}

	response := spec.op(h.services.Graph, ctx, h.services.Clients(id), email, ch)
	result := ResourceResult{
		Resource:   in.Resource,
		Email:      email.Address,
		Response:   response,
		Challenged: ch.challenged,
	}
	return jsonResult(result, ch.challenged), nil, nil
}

// challenger revokes the caller's session when the provider token is gone.
type challenger struct {
	id         *identity.Identity
	sessions   SessionService
	logger     *slog.Logger
	challenged bool
}

func (c *challenger) Challenge(ctx context.Context) {
	if c.challenged {
		return
	}
	c.challenged = true
	if c.sessions == nil {
		return
	}
	if err := c.sessions.Revoke(ctx, c.id.SessionID); err != nil {
		c.logger.Warn("failed to revoke session", "session_id", c.id.SessionID, "error", err)
	}
}

func jsonResult(v any, isError bool) *sdkmcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		IsError: isError,
	}
}

func errorResult(err error) *sdkmcp.CallToolResult {
	data, _ := json.Marshal(MapError(err))
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}

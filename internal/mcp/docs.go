package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `timeline reads the signed-in user's Microsoft 365 activity and iManage documents.

Tools:
- get_timeline: calendar events, used and recent files, received and sent mail, and iManage documents merged newest first. Items without a date come last.
- get_resource: one raw resource as JSON text (profile, photo, calendar, insights, files, received_mail, sent_mail, documents).

Authenticate with the session key as a bearer token. A result with challenged=true means the provider token is gone and the session was revoked; create a new session.

Docs:
- timeline://docs/index
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "timeline://docs/index",
		Name:        "docs_index",
		Title:       "timeline docs index",
		Description: "Item types, email resolution and error codes.",
		Content: `# timeline

## Item types

| type | source |
|---|---|
| Outlook Calendar Event | calendar events |
| Recently Used File (Insights) | insights/used |
| Recently Used File | drive/recent |
| Outlook Email Received | inbox |
| Outlook Email Sent | sent items |
| Document (iManage) | iManage recent documents |

## Email

The ` + "`email`" + ` argument, when present, wins even if empty. Otherwise the session's
preferred_username is used. ` + "`get_resource`" + ` honors it for profile, photo and calendar only.

## Errors

Tool errors carry a JSON body with ` + "`code`" + `: UNAUTHORIZED, INVALID_RESOURCE,
INVALID_EMAIL, NOT_CONFIGURED, PROVIDER_ERROR or INTERNAL.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}

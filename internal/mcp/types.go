package mcp

import (
	"github.com/rpggio/timeline/internal/domain/activity"
	"github.com/rpggio/timeline/internal/identity"
)

type GetTimelineParams struct {
	Email *string `json:"email,omitempty" jsonschema:"email address to load; defaults to the signed-in user"`
}

type GetResourceParams struct {
	Resource string  `json:"resource" jsonschema:"one of profile, photo, calendar, insights, files, received_mail, sent_mail, documents"`
	Email    *string `json:"email,omitempty" jsonschema:"email address to load; honored for profile, photo, calendar"`
}

type TimelineResult struct {
	Email string          `json:"email,omitempty"`
	Items []activity.Item `json:"items"`
}

type ResourceResult struct {
	Resource   string `json:"resource"`
	Email      string `json:"email,omitempty"`
	Response   string `json:"response"`
	Challenged bool   `json:"challenged,omitempty"`
}

func emailParam(email *string) identity.Email {
	if email == nil {
		return identity.NoEmail
	}
	return identity.SomeEmail(*email)
}

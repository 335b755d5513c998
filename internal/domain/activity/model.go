package activity

import "time"

// Type labels where a timeline item came from.
type Type string

const (
	TypeCalendarEvent Type = "Outlook Calendar Event"
	TypeInsightFile   Type = "Recently Used File (Insights)"
	TypeRecentFile    Type = "Recently Used File"
	TypeReceivedEmail Type = "Outlook Email Received"
	TypeSentEmail     Type = "Outlook Email Sent"
	TypeDocument      Type = "Document (iManage)"
)

// Item is one entry of the unified timeline. Items carry no identity
// beyond their fields, so equal items from different sources are kept.
type Item struct {
	CreatedAt *time.Time `json:"createdAt"`
	Type      Type       `json:"type"`
	Name      string     `json:"name"`
}

// NewItem builds an item. A zero createdAt is stored as missing.
func NewItem(createdAt time.Time, typ Type, name string) Item {
	item := Item{Type: typ, Name: name}
	if !createdAt.IsZero() {
		t := createdAt
		item.CreatedAt = &t
	}
	return item
}

// newer reports whether a sorts before b on a newest-first timeline.
// Items without a timestamp are older than every timestamped item.
func newer(a, b Item) bool {
	switch {
	case a.CreatedAt == nil:
		return false
	case b.CreatedAt == nil:
		return true
	default:
		return a.CreatedAt.After(*b.CreatedAt)
	}
}

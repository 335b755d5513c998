package graph

import (
	"time"

	"github.com/rpggio/timeline/internal/domain/activity"
)

// Only the fields the timeline reads are decoded; views get the raw JSON.

type event struct {
	CreatedDateTime *time.Time `json:"createdDateTime"`
	Subject         string     `json:"subject"`
}

type insight struct {
	LastUsed struct {
		LastAccessedDateTime *time.Time `json:"lastAccessedDateTime"`
	} `json:"lastUsed"`
	ResourceVisualization struct {
		Title string `json:"title"`
	} `json:"resourceVisualization"`
}

type driveItem struct {
	CreatedDateTime *time.Time `json:"createdDateTime"`
	Name            string     `json:"name"`
}

type message struct {
	CreatedDateTime *time.Time `json:"createdDateTime"`
	Subject         string     `json:"subject"`
}

func (e event) item() activity.Item {
	return activity.Item{CreatedAt: e.CreatedDateTime, Type: activity.TypeCalendarEvent, Name: e.Subject}
}

func (i insight) item() activity.Item {
	return activity.Item{
		CreatedAt: i.LastUsed.LastAccessedDateTime,
		Type:      activity.TypeInsightFile,
		Name:      i.ResourceVisualization.Title,
	}
}

func (d driveItem) item() activity.Item {
	return activity.Item{CreatedAt: d.CreatedDateTime, Type: activity.TypeRecentFile, Name: d.Name}
}

func messageItem(typ activity.Type) func(message) activity.Item {
	return func(m message) activity.Item {
		return activity.Item{CreatedAt: m.CreatedDateTime, Type: typ, Name: m.Subject}
	}
}

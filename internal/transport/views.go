package transport

import (
	"encoding/json"
	"net/http"

	"github.com/rpggio/timeline/internal/domain/activity"
)

const (
	TitleHome         = "Home"
	TitleTimeline     = "Timeline"
	TitleCalendar     = "Calendar"
	TitleInsights     = "Recent Insights"
	TitleFiles        = "Recent Files"
	TitleReceivedMail = "Received Email"
	TitleSentMail     = "Sent Email"
	TitleDocuments    = "Recent Documents (iManage)"
)

// View is the document every page renders. Anonymous callers get the title
// and nothing else.
type View struct {
	Title    string          `json:"title"`
	Email    string          `json:"email,omitempty"`
	Response string          `json:"response,omitempty"`
	Picture  string          `json:"picture,omitempty"`
	Items    []activity.Item `json:"items,omitempty"`
}

func writeView(w http.ResponseWriter, status int, view View) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(view)
}

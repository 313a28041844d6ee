// Where: internal/domain/events/event.go
// What: EventBridge event envelope.
// Why: Give simulated events the same shape the event bus delivers.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event is an EventBridge event as delivered to rules.
type Event struct {
	Version    string         `json:"version,omitempty"`
	ID         string         `json:"id,omitempty"`
	DetailType string         `json:"detail-type"`
	Source     string         `json:"source"`
	Account    string         `json:"account,omitempty"`
	Time       time.Time      `json:"time"`
	Region     string         `json:"region,omitempty"`
	Resources  []string       `json:"resources"`
	Detail     map[string]any `json:"detail"`
}

// ParseEvent decodes an event document. The source field is required.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if strings.TrimSpace(ev.Source) == "" {
		return Event{}, fmt.Errorf("decode event: source is required")
	}
	return ev, nil
}

// Fields returns the event as the generic document patterns are matched against.
func (e Event) Fields() map[string]any {
	resources := make([]any, len(e.Resources))
	for i, r := range e.Resources {
		resources[i] = r
	}
	fields := map[string]any{
		"version":     e.Version,
		"id":          e.ID,
		"detail-type": e.DetailType,
		"source":      e.Source,
		"account":     e.Account,
		"region":      e.Region,
		"resources":   resources,
	}
	if !e.Time.IsZero() {
		fields["time"] = e.Time.UTC().Format(time.RFC3339)
	}
	if e.Detail != nil {
		fields["detail"] = e.Detail
	}
	return fields
}

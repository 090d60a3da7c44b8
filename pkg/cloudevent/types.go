// Package cloudevent implements CloudEvents 1.0 structured-mode events
// and their delivery over HTTP.
package cloudevent

import "time"

const (
	// SpecVersion is the CloudEvents specification version produced.
	SpecVersion = "1.0"

	contentType = "application/json"
)

// CloudEvent is a CloudEvents 1.0 event in structured mode.
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype"`
	Data            map[string]any `json:"data"`
}

// New builds an event stamped with the current UTC time.
func New(eventType, source, subject, id string, data map[string]any) *CloudEvent {
	return &CloudEvent{
		SpecVersion:     SpecVersion,
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		ID:              id,
		Time:            time.Now().UTC(),
		DataContentType: contentType,
		Data:            data,
	}
}

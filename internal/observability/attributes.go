// Package observability provides OTel metrics with a Prometheus exporter.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrLocation  = "location"
	attrSuccess   = "success"
	attrTaskState = "state"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	// Normalize paths with IDs to reduce cardinality
	// /v1/projects/p1/locations/us/jobs/j1 -> /v1/projects/{project}/locations/{location}/jobs/{job}
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// Group status codes to reduce cardinality
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func locationAttr(location string) attribute.KeyValue {
	return attribute.String(attrLocation, location)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

func taskStateAttr(state string) attribute.KeyValue {
	return attribute.String(attrTaskState, state)
}

// normalizePath replaces dynamic path segments with placeholders. The job
// API nests resource IDs at fixed positions, so normalization walks the
// collection/ID pairs.
func normalizePath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segments) < 2 || segments[0] != "v1" || segments[1] != "projects" {
		return path
	}

	placeholders := map[string]string{
		"projects":  "{project}",
		"locations": "{location}",
		"jobs":      "{job}",
		"tasks":     "{task}",
	}
	for i := 1; i < len(segments); i++ {
		if ph, ok := placeholders[segments[i-1]]; ok && segments[i] != "" {
			segments[i] = ph
		}
	}
	return "/" + strings.Join(segments, "/")
}

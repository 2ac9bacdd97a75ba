// Package observability provides metrics, tracing, and logging utilities.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrMethod      = "method"
	attrPath        = "path"
	attrStatus      = "status"
	attrBackend     = "backend"
	attrOperation   = "operation"
	attrKind        = "kind"
	attrProvisioned = "provisioned"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	// Normalize paths with IDs to reduce cardinality
	// /v1/agents/42 -> /v1/agents/{requestId}, unrouted -> other
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func backendAttr(backend string) attribute.KeyValue {
	return attribute.String(attrBackend, backend)
}

func operationAttr(op string) attribute.KeyValue {
	return attribute.String(attrOperation, op)
}

func kindAttr(kind string) attribute.KeyValue {
	return attribute.String(attrKind, kind)
}

func provisionedAttr(provisioned bool) attribute.KeyValue {
	return attribute.Bool(attrProvisioned, provisioned)
}

// otherPath labels every request that matched no route.
const otherPath = "other"

var routedPaths = map[string]bool{
	"/livez":     true,
	"/readyz":    true,
	"/metrics":   true,
	"/v1/agents": true,
}

// normalizePath replaces dynamic path segments with placeholders and folds
// unknown paths into a single value.
func normalizePath(path string) string {
	if routedPaths[path] {
		return path
	}
	if id, ok := strings.CutPrefix(path, "/v1/agents/"); ok && id != "" && !strings.Contains(id, "/") {
		return "/v1/agents/{requestId}"
	}
	return otherPath
}

// WithBackend returns a metric option with the backend attribute.
func WithBackend(backend string) metric.MeasurementOption {
	return metric.WithAttributes(backendAttr(backend))
}

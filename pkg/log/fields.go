package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldViewerID = "viewer_id"
	FieldTargetID = "target_id"

	// Entities
	FieldPostID   = "post_id"
	FieldEdgeID   = "edge_id"
	FieldCacheKey = "cache_key"
	FieldTopic    = "topic"

	// Component
	FieldComponent = "component"
)

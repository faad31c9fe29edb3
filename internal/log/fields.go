package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldTraceID   = "trace_id"
	FieldClientIP  = "client_ip"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentRouter  = "router"
	ComponentAgent   = "agent"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentCache   = "cache"
)

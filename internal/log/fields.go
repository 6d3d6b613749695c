package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldMonth      = "month"
	FieldSource     = "source"
	FieldSources    = "sources"
	FieldSkipped    = "skipped"
	FieldRows       = "rows"
	FieldPosted     = "posted"
	FieldDeliveryID = "delivery_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentSummary   = "summary"
	ComponentSlack     = "slack"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
)

// Operations defines standard operation names
const (
	OpList      = "list"
	OpPreview   = "preview"
	OpSummarize = "summarize"
	OpReport    = "report"
	OpPost      = "post"
	OpRecord    = "record"
	OpConsume   = "consume"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

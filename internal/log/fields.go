package log

// Common field names for structured logging.
const (
	FieldComponent = "component"
	FieldOwnerID   = "owner_id"
	FieldState     = "state"
	FieldKind      = "kind"
	FieldAmount    = "amount"
	FieldNote      = "note"
	FieldBalance   = "balance"
	FieldRule      = "rule"
	FieldRequestID = "request_id"
	FieldQueue     = "queue"
	FieldExchange  = "exchange"
	FieldBackend   = "backend"
	FieldError     = "error"
	FieldOperation = "operation"
)

// Components defines standard component names.
const (
	ComponentApp       = "app"
	ComponentDialog    = "dialog"
	ComponentSession   = "session"
	ComponentLedger    = "ledger"
	ComponentRecorder  = "recorder"
	ComponentDigest    = "digest"
	ComponentReminder  = "reminder"
	ComponentAMQP      = "amqp"
	ComponentStorage   = "storage"
	ComponentSheets    = "sheets"
	ComponentBackendCf = "backend"
	ComponentConfig    = "config"
)

// Operations defines standard operation names.
const (
	OpAppend   = "append"
	OpRead     = "read"
	OpCreate   = "create"
	OpShare    = "share"
	OpSweep    = "sweep"
	OpSchedule = "schedule"
	OpCancel   = "cancel"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

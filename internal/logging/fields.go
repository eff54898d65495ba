package logging

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the structured logging key for the daemon run identifier.
	FieldRunID = "run_id"
	// FieldSource is the structured logging key for a file path read from the transport.
	FieldSource = "source"
	// FieldDestination is the structured logging key for a copy destination path.
	FieldDestination = "destination"
	// FieldTransport is the structured logging key for the named pipe path.
	FieldTransport = "transport"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldErrorKind is the failure category of an error attribute.
	FieldErrorKind = "error_kind"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldState is the structured logging key for pipeline state names.
	FieldState = "state"
)

package ipc

import "time"

// serviceName is the net/rpc name of the control service.
const serviceName = "Pipecopy"

// StatusRequest asks for a pipeline snapshot.
type StatusRequest struct{}

// StatusResponse describes the running pipeline.
type StatusResponse struct {
	State           string    `json:"state"`
	RunID           string    `json:"run_id"`
	PID             int       `json:"pid"`
	Transport       string    `json:"transport"`
	Destination     string    `json:"destination"`
	QueueDepth      int       `json:"queue_depth"`
	QueueCapacity   int       `json:"queue_capacity"`
	StartedAt       time.Time `json:"started_at"`
	RecordsAccepted int64     `json:"records_accepted"`
	RecordsDropped  int64     `json:"records_dropped"`
	CopiesSucceeded int64     `json:"copies_succeeded"`
	CopiesFailed    int64     `json:"copies_failed"`
	BytesCopied     int64     `json:"bytes_copied"`
	LedgerPath      string    `json:"ledger_path"`
	LogPath         string    `json:"log_path"`
}

// StopRequest asks the pipeline to shut down.
type StopRequest struct {
	// Wait blocks the reply until shutdown has completed.
	Wait bool `json:"wait"`
}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Stopped bool   `json:"stopped"`
	State   string `json:"state"`
}

package models

import "time"

// Strategy is the transfer algorithm selected from object size during
// planning. It is chosen once; each variant is a closed code path in the
// streaming engine.
type Strategy string

const (
	StrategyDirect   Strategy = "direct"
	StrategyChunked  Strategy = "chunked"
	StrategyParallel Strategy = "parallel-chunked"
)

// TransferState is a phase of the transfer state machine.
type TransferState string

const (
	StateValidating     TransferState = "validating"
	StateAuthenticating TransferState = "authenticating"
	StatePlanning       TransferState = "planning"
	StateTransferring   TransferState = "transferring"
	StateRetrying       TransferState = "retrying"
	StateVerifying      TransferState = "verifying"
	StateRecording      TransferState = "recording"
	StateNotifying      TransferState = "notifying"
	StateCleaningUp     TransferState = "cleaning_up"
	StateCompleted      TransferState = "completed"
	StateFailed         TransferState = "failed"
)

// Terminal reports whether the state machine has reached its end for this
// record. Terminal records are immutable except for store retention expiry.
func (s TransferState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// TransferRecord tracks one transfer from acceptance to its terminal state.
// It references exactly one session and one plan; mutated only by the
// orchestrator as the state machine advances, retained for audit afterwards.
type TransferRecord struct {
	ID               string        `json:"id"`
	Plan             TransferPlan  `json:"plan"`
	SessionID        string        `json:"session_id,omitempty"`
	Strategy         Strategy      `json:"strategy,omitempty"`
	State            TransferState `json:"state"`
	BytesTotal       int64         `json:"bytes_total"`
	BytesTransferred int64         `json:"bytes_transferred"`
	ProgressPercent  float64       `json:"progress_percent"`
	ChecksumExpected string        `json:"checksum_expected,omitempty"`
	ChecksumActual   string        `json:"checksum_actual,omitempty"`
	AttemptCount     int           `json:"attempt_count"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      time.Time     `json:"completed_at,omitzero"`
	Error            string        `json:"error,omitempty"`
	// ErrorKind is the taxonomy kind shown to users (validation,
	// authorization, transient, integrity, collaborator).
	ErrorKind string `json:"error_kind,omitempty"`
	TicketRef string `json:"ticket_ref,omitempty"`
}

// Progress updates the byte counters and derived percent.
func (r *TransferRecord) Progress(transferred int64) {
	r.BytesTransferred = transferred
	if r.BytesTotal > 0 {
		r.ProgressPercent = float64(transferred) / float64(r.BytesTotal) * 100
	}
}

package core

import "time"

// SendStage is the progress of one in-flight send.
type SendStage string

const (
	SendResolvingContent SendStage = "resolving-content"
	SendSubmitting       SendStage = "submitting"
	SendAwaitingFinality SendStage = "awaiting-finality"
	SendDone             SendStage = "done"
)

// PendingSend lives only while its send pipeline runs.
type PendingSend struct {
	ID        string
	Receiver  Account
	Message   string
	Stage     SendStage
	StartedAt time.Time
}

// SendResult describes a send whose transaction reached finality.
type SendResult struct {
	ID     string
	Ref    ContentRef
	TxHash string
	// RefreshErr is set when the post-finality refresh failed; the send itself still succeeded.
	RefreshErr error
}

// Snapshot is the observable state handed to the presentation layer.
type Snapshot struct {
	Session  SessionState
	Messages []MessageRecord
	Pending  []PendingSend
}

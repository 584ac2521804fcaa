package core

import "context"

// SessionStatus is the state of the identity/ledger connection.
type SessionStatus int

const (
	// SessionDisconnected means no identity is bound.
	SessionDisconnected SessionStatus = iota
	// SessionConnecting means the provider is being queried or is prompting for authorization.
	SessionConnecting
	// SessionConnected means an account and a gateway are bound.
	SessionConnected
	// SessionFailed means the last connect attempt failed; Reason holds the cause.
	SessionFailed
)

func (s SessionStatus) String() string {
	switch s {
	case SessionDisconnected:
		return "disconnected"
	case SessionConnecting:
		return "connecting"
	case SessionConnected:
		return "connected"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SessionState is replaced wholesale on every transition; it is never mutated in place.
type SessionState struct {
	Status  SessionStatus
	Account Account
	Gateway Gateway
	Reason  error
}

// Connected reports whether the state carries a usable account and gateway.
func (s SessionState) Connected() bool {
	return s.Status == SessionConnected && s.Gateway != nil
}

// TxHandle identifies a submitted ledger transaction that can be awaited.
type TxHandle interface {
	Hash() string
}

// Gateway is the ledger contract as seen by the orchestrator.
//
// Error contract: Submit returns ErrInvalidReceiver, ErrNotConnected or ErrSubmissionRejected;
// AwaitFinality returns ErrTransactionReverted, ErrProviderTimeout or ErrNotConnected;
// FetchAll returns ErrNotConnected or ErrRead.
type Gateway interface {
	Submit(ctx context.Context, receiver Account, ref ContentRef) (TxHandle, error)
	AwaitFinality(ctx context.Context, handle TxHandle) error
	FetchAll(ctx context.Context) ([]MessageRecord, error)
}

// Counter is implemented by gateways that can read a per-account message count
// from the ledger.
type Counter interface {
	CountFor(ctx context.Context, account Account) (uint64, error)
}

// Resolver uploads content and returns its identifier.
//
// Error contract: ErrStoreUnavailable or ErrEncoding.
type Resolver interface {
	Resolve(ctx context.Context, content []byte) (ContentRef, error)
}

// SessionSource exposes the current session value.
type SessionSource interface {
	State() SessionState
}

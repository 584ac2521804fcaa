package proto

const (
	ProtocolVersion = 1

	OutboundTypeSnapshot = "snapshot"
	OutboundTypeError    = "error"
)

// Outbound is the envelope for frames sent to websocket clients.
type Outbound struct {
	Type     string    `json:"type"`
	Protocol int       `json:"protocol"`
	Data     *Snapshot `json:"data,omitempty"`
	Error    *Error    `json:"error,omitempty"`
}

// Session describes the identity connection.
type Session struct {
	Status  string `json:"status"`
	Account string `json:"account,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Message is one ledger record. TS is unix seconds as stored by the contract.
type Message struct {
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver"`
	ContentRef string `json:"content_ref"`
	TS         int64  `json:"ts"`
}

// Pending is an in-flight send.
type Pending struct {
	ID        string `json:"id"`
	Receiver  string `json:"receiver"`
	Message   string `json:"message"`
	Stage     string `json:"stage"`
	StartedAt int64  `json:"started_at"`
}

// Snapshot is the full observable state.
type Snapshot struct {
	Session  Session   `json:"session"`
	Messages []Message `json:"messages"`
	Pending  []Pending `json:"pending"`
}

// Count is the ledger's message count for one account.
type Count struct {
	Account string `json:"account"`
	Count   uint64 `json:"count"`
}

// SendRequest is the body of POST /api/messages.
type SendRequest struct {
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
}

// SendResponse reports a send that reached finality.
type SendResponse struct {
	ID           string `json:"id"`
	ContentRef   string `json:"content_ref"`
	TxHash       string `json:"tx_hash"`
	RefreshError string `json:"refresh_error,omitempty"`
}

// Error describes a failed request.
type Error struct {
	Code  string `json:"code"`
	Msg   string `json:"msg"`
	Stage string `json:"stage,omitempty"`
}

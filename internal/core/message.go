package core

import (
	"strings"
	"time"
)

// Account is a wallet address issued by the identity provider.
type Account string

// ContentRef is a content identifier derived from message bytes by the content store.
type ContentRef string

// MessageRecord is one entry of the ledger's message list.
// Records are created by the ledger only and never modified client-side.
type MessageRecord struct {
	Sender     Account
	Receiver   Account
	ContentRef ContentRef
	Timestamp  int64 // seconds since epoch, as stamped by the ledger
}

// Time returns the ledger timestamp as time.Time.
func (m MessageRecord) Time() time.Time {
	return time.Unix(m.Timestamp, 0).UTC()
}

// Involves reports whether the account is the sender or the receiver of the record.
// Addresses compare case-insensitively since checksummed and lowercase forms are equivalent.
func (m MessageRecord) Involves(account Account) bool {
	return strings.EqualFold(string(m.Sender), string(account)) ||
		strings.EqualFold(string(m.Receiver), string(account))
}

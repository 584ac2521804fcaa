package core

import (
	"context"
	"sync"
	"time"
)

type fakeSession struct {
	mu    sync.Mutex
	state SessionState
}

func connectedSession(account Account, gw Gateway) *fakeSession {
	return &fakeSession{state: SessionState{Status: SessionConnected, Account: account, Gateway: gw}}
}

func (s *fakeSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) set(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

type fakeResolver struct {
	mu    sync.Mutex
	refs  map[string]ContentRef
	err   error
	calls int
}

func (r *fakeResolver) Resolve(_ context.Context, content []byte) (ContentRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	if ref, ok := r.refs[string(content)]; ok {
		return ref, nil
	}
	return ContentRef("Qm" + string(content)), nil
}

type fakeTx string

func (t fakeTx) Hash() string { return string(t) }

// fakeLedger appends a record on finality, the way the chat contract does.
type fakeLedger struct {
	mu      sync.Mutex
	sender  Account
	records []MessageRecord
	queued  map[fakeTx]MessageRecord

	submitErr   error
	finalityErr error
	fetchErr    error

	submits int
	fetches int
	clock   int64
}

func newFakeLedger(sender Account, seed ...MessageRecord) *fakeLedger {
	return &fakeLedger{
		sender:  sender,
		records: append([]MessageRecord(nil), seed...),
		queued:  make(map[fakeTx]MessageRecord),
		clock:   1_700_000_000,
	}
}

func (l *fakeLedger) Submit(_ context.Context, receiver Account, ref ContentRef) (TxHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submits++
	if l.submitErr != nil {
		return nil, l.submitErr
	}
	l.clock++
	tx := fakeTx("0xtx" + string(ref))
	l.queued[tx] = MessageRecord{Sender: l.sender, Receiver: receiver, ContentRef: ref, Timestamp: l.clock}
	return tx, nil
}

func (l *fakeLedger) AwaitFinality(_ context.Context, handle TxHandle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finalityErr != nil {
		return l.finalityErr
	}
	tx := handle.(fakeTx)
	l.records = append(l.records, l.queued[tx])
	delete(l.queued, tx)
	return nil
}

func (l *fakeLedger) FetchAll(_ context.Context) ([]MessageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetches++
	if l.fetchErr != nil {
		return nil, l.fetchErr
	}
	out := make([]MessageRecord, len(l.records))
	copy(out, l.records)
	return out, nil
}

func (l *fakeLedger) counts() (submits, fetches int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.submits, l.fetches
}

// blockingLedger holds AwaitFinality until release is closed.
type blockingLedger struct {
	*fakeLedger
	entered chan struct{}
	release chan struct{}
}

func (l *blockingLedger) AwaitFinality(ctx context.Context, handle TxHandle) error {
	close(l.entered)
	select {
	case <-l.release:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Second):
	}
	return l.fakeLedger.AwaitFinality(ctx, handle)
}

// countingLedger reports how many records each account sent.
type countingLedger struct {
	*fakeLedger
}

func (l countingLedger) CountFor(_ context.Context, account Account) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n uint64
	for _, r := range l.records {
		if r.Sender == account {
			n++
		}
	}
	return n, nil
}

package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ledgerchat/internal/metrics"
	"github.com/vovakirdan/ledgerchat/internal/utils"
)

// Orchestrator coordinates the session, the content resolver and the ledger gateway
// and owns the reconciled message list.
type Orchestrator struct {
	session  SessionSource
	resolver Resolver
	metrics  *metrics.Metrics
	log      *zerolog.Logger

	mu       sync.RWMutex
	messages []MessageRecord
	pending  map[string]PendingSend

	subMu sync.Mutex
	subs  map[string]chan struct{}
}

// NewOrchestrator builds an orchestrator with an empty message list.
// m may be nil.
func NewOrchestrator(session SessionSource, resolver Resolver, m *metrics.Metrics, logger *zerolog.Logger) *Orchestrator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Orchestrator{
		session:  session,
		resolver: resolver,
		metrics:  m,
		log:      logger,
		pending:  make(map[string]PendingSend),
		subs:     make(map[string]chan struct{}),
	}
}

// Refresh replaces the message list with the ledger's current list.
// On failure the previous list is kept.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	state := o.session.State()
	if !state.Connected() {
		return NewError(KindNotConnected, nil)
	}
	return o.refreshFrom(ctx, state.Gateway)
}

func (o *Orchestrator) refreshFrom(ctx context.Context, gw Gateway) error {
	records, err := gw.FetchAll(ctx)
	if err != nil {
		o.metrics.ObserveRefreshFailure(string(KindOf(err)))
		o.log.Warn().Err(err).Msg("refresh failed")
		return fmt.Errorf("refresh: %w", err)
	}

	list := make([]MessageRecord, len(records))
	copy(list, records)

	o.mu.Lock()
	o.messages = list
	o.mu.Unlock()

	o.metrics.ObserveRefresh(len(list))
	o.log.Debug().Int("count", len(list)).Msg("message list refreshed")
	o.notify()
	return nil
}

// Send uploads message, submits a ledger transaction addressed to receiver, waits for
// finality and then refreshes the message list once.
//
// A failure before finality returns a *StageError and leaves the message list untouched.
// A refresh failure after finality is reported in SendResult.RefreshErr only.
func (o *Orchestrator) Send(ctx context.Context, receiver Account, message string) (*SendResult, error) {
	if receiver == "" || message == "" {
		return nil, NewError(KindInvalidInput, errors.New("receiver and message are required"))
	}

	state := o.session.State()
	if !state.Connected() {
		return nil, NewError(KindNotConnected, nil)
	}
	gw := state.Gateway

	start := time.Now()
	p := PendingSend{
		ID:        utils.NewID(),
		Receiver:  receiver,
		Message:   message,
		Stage:     SendResolvingContent,
		StartedAt: start,
	}
	o.track(p)
	defer o.untrack(p.ID)

	logger := o.log.With().
		Str("send_id", p.ID).
		Str("sender", string(state.Account)).
		Str("receiver", string(receiver)).
		Logger()

	ref, err := o.resolver.Resolve(ctx, []byte(message))
	if err != nil {
		return nil, o.fail(&logger, StageResolve, err, start)
	}
	logger.Debug().Str("content_ref", string(ref)).Msg("content resolved")

	o.advance(p.ID, SendSubmitting)
	handle, err := gw.Submit(ctx, receiver, ref)
	if err != nil {
		return nil, o.fail(&logger, StageSubmit, err, start)
	}
	logger.Info().Str("tx", handle.Hash()).Msg("transaction submitted")

	o.advance(p.ID, SendAwaitingFinality)
	if err := gw.AwaitFinality(ctx, handle); err != nil {
		return nil, o.fail(&logger, StageFinality, err, start)
	}
	o.advance(p.ID, SendDone)
	logger.Info().Str("tx", handle.Hash()).Msg("transaction final")

	result := &SendResult{
		ID:     p.ID,
		Ref:    ref,
		TxHash: handle.Hash(),
	}
	if err := o.refreshFrom(ctx, gw); err != nil {
		result.RefreshErr = err
	}
	o.metrics.ObserveSend("", "", time.Since(start))
	return result, nil
}

func (o *Orchestrator) fail(logger *zerolog.Logger, stage Stage, err error, start time.Time) error {
	kind := KindOf(err)
	o.metrics.ObserveSend(string(stage), string(kind), time.Since(start))
	logger.Warn().Err(err).Str("stage", string(stage)).Msg("send failed")
	return &StageError{Stage: stage, Err: err}
}

// CountFor reads the ledger's message count for account through the bound gateway.
func (o *Orchestrator) CountFor(ctx context.Context, account Account) (uint64, error) {
	state := o.session.State()
	if !state.Connected() {
		return 0, NewError(KindNotConnected, nil)
	}
	counter, ok := state.Gateway.(Counter)
	if !ok {
		return 0, NewError(KindReadError, errors.New("gateway does not expose message counts"))
	}
	return counter.CountFor(ctx, account)
}

// Messages returns a copy of the reconciled list in ledger order.
func (o *Orchestrator) Messages() []MessageRecord {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]MessageRecord, len(o.messages))
	copy(out, o.messages)
	return out
}

// Conversation returns the records the account sent or received, in ledger order.
func (o *Orchestrator) Conversation(account Account) []MessageRecord {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]MessageRecord, 0)
	for _, m := range o.messages {
		if m.Involves(account) {
			out = append(out, m)
		}
	}
	return out
}

// Snapshot returns session, messages and in-flight sends as one value.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	messages := make([]MessageRecord, len(o.messages))
	copy(messages, o.messages)
	pending := make([]PendingSend, 0, len(o.pending))
	for _, p := range o.pending {
		pending = append(pending, p)
	}
	o.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].StartedAt.Before(pending[j].StartedAt)
	})

	return Snapshot{
		Session:  o.session.State(),
		Messages: messages,
		Pending:  pending,
	}
}

// Subscribe returns a channel signalled after every observable state change.
// Signals coalesce: a slow reader sees at least one signal after the latest change.
func (o *Orchestrator) Subscribe() (<-chan struct{}, func()) {
	id := utils.NewID()
	ch := make(chan struct{}, 1)

	o.subMu.Lock()
	o.subs[id] = ch
	o.subMu.Unlock()

	return ch, func() {
		o.subMu.Lock()
		delete(o.subs, id)
		o.subMu.Unlock()
	}
}

// Notify signals subscribers; used by the host after session transitions.
func (o *Orchestrator) Notify() {
	o.notify()
}

func (o *Orchestrator) notify() {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	for _, ch := range o.subs {
		select {
		case ch <- struct{}{}:
		default:
			// Already signalled.
		}
	}
}

func (o *Orchestrator) track(p PendingSend) {
	o.mu.Lock()
	o.pending[p.ID] = p
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) advance(id string, stage SendStage) {
	o.mu.Lock()
	if p, ok := o.pending[id]; ok {
		p.Stage = stage
		o.pending[id] = p
	}
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) untrack(id string) {
	o.mu.Lock()
	delete(o.pending, id)
	o.mu.Unlock()
	o.notify()
}

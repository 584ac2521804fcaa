package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vovakirdan/ledgerchat/internal/core"
	"github.com/vovakirdan/ledgerchat/internal/metrics"
)

// Provider supplies identity and signing. *wallet.Provider satisfies it.
type Provider interface {
	// Accounts lists accounts already authorized; never prompts.
	Accounts(ctx context.Context) ([]core.Account, error)
	// RequestAccounts asks for authorization; may block on a human.
	RequestAccounts(ctx context.Context) ([]core.Account, error)
	// Signer returns transact options bound to account.
	Signer(ctx context.Context, account core.Account) (*bind.TransactOpts, error)
}

// Gateway is a ledger gateway the manager can invalidate.
type Gateway interface {
	core.Gateway
	Close()
}

// BindFunc builds a gateway for account signed by signer.
type BindFunc func(account core.Account, signer *bind.TransactOpts) (Gateway, error)

// Manager owns the session state machine.
// The state value is replaced on every transition and read with State.
type Manager struct {
	provider Provider
	bind     BindFunc
	metrics  *metrics.Metrics
	log      *zerolog.Logger
	onChange func(core.SessionState)

	group singleflight.Group

	mu    sync.RWMutex
	state core.SessionState
	gw    Gateway
}

// Option customizes a Manager.
type Option func(*Manager)

// WithMetrics records connect outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mg *Manager) { mg.metrics = m }
}

// WithOnChange registers a callback invoked after every state transition.
func WithOnChange(fn func(core.SessionState)) Option {
	return func(mg *Manager) { mg.onChange = fn }
}

// NewManager creates a disconnected manager. provider may be nil, in which case
// Connect fails with core.ErrNoProvider.
func NewManager(provider Provider, bindGateway BindFunc, logger *zerolog.Logger, opts ...Option) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	m := &Manager{
		provider: provider,
		bind:     bindGateway,
		log:      logger,
		state:    core.SessionState{Status: core.SessionDisconnected},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current session value.
func (m *Manager) State() core.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Connect binds an account and a gateway. While already connected it returns the
// existing state without consulting the provider. Concurrent calls share one attempt.
func (m *Manager) Connect(ctx context.Context) (core.SessionState, error) {
	if st := m.State(); st.Connected() {
		return st, nil
	}

	v, err, _ := m.group.Do("connect", func() (interface{}, error) {
		return m.connect(ctx)
	})
	state, _ := v.(core.SessionState)
	return state, err
}

// Reconnect drops the current gateway, making it stale, and connects again.
func (m *Manager) Reconnect(ctx context.Context) (core.SessionState, error) {
	m.Disconnect()
	return m.Connect(ctx)
}

// Disconnect closes the gateway and returns to Disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	gw := m.gw
	m.gw = nil
	m.state = core.SessionState{Status: core.SessionDisconnected}
	state := m.state
	m.mu.Unlock()

	if gw != nil {
		gw.Close()
		m.log.Info().Msg("session disconnected")
	}
	m.changed(state)
}

func (m *Manager) connect(ctx context.Context) (core.SessionState, error) {
	if st := m.State(); st.Connected() {
		return st, nil
	}
	if m.provider == nil {
		m.metrics.ObserveConnect("no_provider")
		return m.State(), core.NewError(core.KindNoProvider, nil)
	}

	m.set(core.SessionState{Status: core.SessionConnecting})

	accounts, err := m.provider.Accounts(ctx)
	if err != nil {
		return m.fail(fmt.Errorf("list accounts: %w", err))
	}
	if len(accounts) == 0 {
		m.log.Info().Msg("no authorized accounts, requesting authorization")
		accounts, err = m.provider.RequestAccounts(ctx)
		if err != nil {
			return m.fail(fmt.Errorf("request accounts: %w", err))
		}
		if len(accounts) == 0 {
			return m.fail(errors.New("request accounts: provider returned no accounts"))
		}
	}
	account := accounts[0]

	signer, err := m.provider.Signer(ctx, account)
	if err != nil {
		return m.fail(fmt.Errorf("signer for %s: %w", account, err))
	}
	gw, err := m.bind(account, signer)
	if err != nil {
		return m.fail(fmt.Errorf("bind gateway: %w", err))
	}

	m.mu.Lock()
	old := m.gw
	m.gw = gw
	m.state = core.SessionState{Status: core.SessionConnected, Account: account, Gateway: gw}
	state := m.state
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}
	m.metrics.ObserveConnect(core.SessionConnected.String())
	m.log.Info().Str("account", string(account)).Msg("session connected")
	m.changed(state)
	return state, nil
}

func (m *Manager) fail(reason error) (core.SessionState, error) {
	state := core.SessionState{Status: core.SessionFailed, Reason: reason}
	m.set(state)
	m.metrics.ObserveConnect(core.SessionFailed.String())
	m.log.Warn().Err(reason).Msg("session connect failed")
	return state, fmt.Errorf("connect: %w", reason)
}

func (m *Manager) set(state core.SessionState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	m.changed(state)
}

func (m *Manager) changed(state core.SessionState) {
	if m.onChange != nil {
		m.onChange(state)
	}
}

var _ core.SessionSource = (*Manager)(nil)

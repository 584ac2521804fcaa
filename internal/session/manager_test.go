package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/ledgerchat/internal/core"
)

type fakeProvider struct {
	mu         sync.Mutex
	authorized []core.Account
	keys       []core.Account

	accountsErr error
	requestErr  error
	signerErr   error

	prompts int
	// gate, when set, blocks RequestAccounts until closed.
	gate chan struct{}
}

func (p *fakeProvider) Accounts(context.Context) ([]core.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accountsErr != nil {
		return nil, p.accountsErr
	}
	return append([]core.Account(nil), p.authorized...), nil
}

func (p *fakeProvider) RequestAccounts(ctx context.Context) ([]core.Account, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts++
	if p.requestErr != nil {
		return nil, p.requestErr
	}
	p.authorized = append(p.authorized, p.keys...)
	return append([]core.Account(nil), p.keys...), nil
}

func (p *fakeProvider) Signer(_ context.Context, account core.Account) (*bind.TransactOpts, error) {
	if p.signerErr != nil {
		return nil, p.signerErr
	}
	return &bind.TransactOpts{}, nil
}

func (p *fakeProvider) promptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompts
}

type fakeGateway struct {
	account core.Account
	closed  atomic.Bool
}

func (g *fakeGateway) Submit(context.Context, core.Account, core.ContentRef) (core.TxHandle, error) {
	return nil, errors.New("unused")
}

func (g *fakeGateway) AwaitFinality(context.Context, core.TxHandle) error { return nil }

func (g *fakeGateway) FetchAll(context.Context) ([]core.MessageRecord, error) { return nil, nil }

func (g *fakeGateway) Close() { g.closed.Store(true) }

type binder struct {
	mu    sync.Mutex
	bound []*fakeGateway
	err   error
}

func (b *binder) bind(account core.Account, _ *bind.TransactOpts) (Gateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	gw := &fakeGateway{account: account}
	b.bound = append(b.bound, gw)
	return gw, nil
}

func TestConnectWithoutProvider(t *testing.T) {
	m := NewManager(nil, (&binder{}).bind, nil)

	_, err := m.Connect(context.Background())
	assert.ErrorIs(t, err, core.ErrNoProvider)
	assert.Equal(t, core.SessionDisconnected, m.State().Status)
}

func TestConnectPromptsWhenNoAuthorizedAccount(t *testing.T) {
	p := &fakeProvider{keys: []core.Account{"0xAAA"}}
	b := &binder{}
	var transitions []core.SessionStatus
	m := NewManager(p, b.bind, nil, WithOnChange(func(s core.SessionState) {
		transitions = append(transitions, s.Status)
	}))

	st, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.SessionConnected, st.Status)
	assert.Equal(t, core.Account("0xAAA"), st.Account)
	assert.True(t, st.Connected())
	assert.Equal(t, 1, p.promptCount())
	assert.Equal(t, []core.SessionStatus{core.SessionConnecting, core.SessionConnected}, transitions)
}

func TestConnectUsesExistingAuthorization(t *testing.T) {
	p := &fakeProvider{authorized: []core.Account{"0xAAA"}}
	m := NewManager(p, (&binder{}).bind, nil)

	st, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.Account("0xAAA"), st.Account)
	assert.Zero(t, p.promptCount())
}

func TestConnectTwiceIsIdempotent(t *testing.T) {
	p := &fakeProvider{keys: []core.Account{"0xAAA"}}
	b := &binder{}
	m := NewManager(p, b.bind, nil)

	first, err := m.Connect(context.Background())
	require.NoError(t, err)
	second, err := m.Connect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Account, second.Account)
	assert.Same(t, first.Gateway, second.Gateway)
	assert.Equal(t, 1, p.promptCount(), "no second authorization prompt")
	assert.Len(t, b.bound, 1)
}

func TestConcurrentConnectSharesAttempt(t *testing.T) {
	p := &fakeProvider{keys: []core.Account{"0xAAA"}, gate: make(chan struct{})}
	b := &binder{}
	m := NewManager(p, b.bind, nil)

	var wg sync.WaitGroup
	results := make([]core.SessionState, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := m.Connect(context.Background())
			assert.NoError(t, err)
			results[i] = st
		}(i)
	}

	require.Eventually(t, func() bool { return m.State().Status == core.SessionConnecting }, time.Second, 5*time.Millisecond)
	close(p.gate)
	wg.Wait()

	assert.Equal(t, 1, p.promptCount())
	for _, st := range results {
		assert.Equal(t, core.Account("0xAAA"), st.Account)
	}
}

func TestConnectFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		binder   *binder
	}{
		{name: "accounts error", provider: &fakeProvider{accountsErr: errors.New("rpc down")}, binder: &binder{}},
		{name: "user rejected", provider: &fakeProvider{requestErr: errors.New("rejected")}, binder: &binder{}},
		{name: "no accounts granted", provider: &fakeProvider{}, binder: &binder{}},
		{name: "signer error", provider: &fakeProvider{authorized: []core.Account{"0xA"}, signerErr: errors.New("locked")}, binder: &binder{}},
		{name: "bind error", provider: &fakeProvider{authorized: []core.Account{"0xA"}}, binder: &binder{err: errors.New("bad contract")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.provider, tt.binder.bind, nil)

			st, err := m.Connect(context.Background())
			require.Error(t, err)
			assert.Equal(t, core.SessionFailed, st.Status)
			assert.Error(t, st.Reason)
			assert.Equal(t, core.SessionFailed, m.State().Status)
			assert.False(t, m.State().Connected())
		})
	}
}

func TestConnectRetryAfterFailure(t *testing.T) {
	p := &fakeProvider{keys: []core.Account{"0xAAA"}, requestErr: errors.New("rejected")}
	m := NewManager(p, (&binder{}).bind, nil)

	_, err := m.Connect(context.Background())
	require.Error(t, err)

	p.mu.Lock()
	p.requestErr = nil
	p.mu.Unlock()

	st, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.SessionConnected, st.Status)
	assert.Equal(t, 2, p.promptCount())
}

func TestReconnectInvalidatesOldGateway(t *testing.T) {
	p := &fakeProvider{authorized: []core.Account{"0xAAA"}}
	b := &binder{}
	m := NewManager(p, b.bind, nil)

	first, err := m.Connect(context.Background())
	require.NoError(t, err)
	second, err := m.Reconnect(context.Background())
	require.NoError(t, err)

	require.Len(t, b.bound, 2)
	assert.True(t, b.bound[0].closed.Load(), "stale gateway must be closed")
	assert.False(t, b.bound[1].closed.Load())
	assert.NotSame(t, first.Gateway, second.Gateway)
}

func TestDisconnect(t *testing.T) {
	p := &fakeProvider{authorized: []core.Account{"0xAAA"}}
	b := &binder{}
	m := NewManager(p, b.bind, nil)

	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	m.Disconnect()
	assert.Equal(t, core.SessionDisconnected, m.State().Status)
	assert.Nil(t, m.State().Gateway)
	assert.True(t, b.bound[0].closed.Load())
}

package wallet

import (
	"bytes"
	"context"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/ledgerchat/internal/core"
	"github.com/vovakirdan/ledgerchat/internal/store/sqlite"
)

const testOrigin = "0xe406f7A0a5A7821712B0173fe9E220d95ba6e7BF"

type countingPrompter struct {
	StaticPrompter
	authorizations int
}

func (p *countingPrompter) Authorize(ctx context.Context, origin string, accounts []core.Account) (core.Account, error) {
	p.authorizations++
	return p.StaticPrompter.Authorize(ctx, origin, accounts)
}

type fixedChain struct{ id int64 }

func (c fixedChain) ChainID(context.Context) (*big.Int, error) { return big.NewInt(c.id), nil }

func newTestProvider(t *testing.T, prompt Prompter) *Provider {
	t.Helper()

	grants, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { grants.Close() })

	return New(Options{
		KeystoreDir: t.TempDir(),
		LightScrypt: true,
		Origin:      testOrigin,
	}, grants, prompt, fixedChain{id: 1337}, nil)
}

func TestAccountsEmptyUntilAuthorized(t *testing.T) {
	prompt := &countingPrompter{StaticPrompter: StaticPrompter{Secret: "pw", AutoApprove: true}}
	p := newTestProvider(t, prompt)
	ctx := context.Background()

	addr, err := p.NewAccount("pw")
	require.NoError(t, err)

	accounts, err := p.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	granted, err := p.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Account{addr}, granted)
	assert.Equal(t, 1, prompt.authorizations)

	accounts, err = p.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Account{addr}, accounts)
}

func TestRequestAccountsWithEmptyKeystore(t *testing.T) {
	p := newTestProvider(t, StaticPrompter{AutoApprove: true})

	_, err := p.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, ErrNoKeys)
}

func TestRequestAccountsRejected(t *testing.T) {
	p := newTestProvider(t, StaticPrompter{AutoApprove: false})
	_, err := p.NewAccount("pw")
	require.NoError(t, err)

	_, err = p.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, ErrRejected)

	accounts, err := p.Accounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts, "rejection must not record a grant")
}

func TestSignerUnlocksKey(t *testing.T) {
	p := newTestProvider(t, StaticPrompter{Secret: "pw", AutoApprove: true})
	addr, err := p.NewAccount("pw")
	require.NoError(t, err)

	opts, err := p.Signer(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, string(addr), opts.From.Hex())
	assert.NotNil(t, opts.Signer)
}

func TestSignerWrongPassphrase(t *testing.T) {
	p := newTestProvider(t, StaticPrompter{Secret: "wrong", AutoApprove: true})
	addr, err := p.NewAccount("pw")
	require.NoError(t, err)

	_, err = p.Signer(context.Background(), addr)
	assert.Error(t, err)
}

func TestSignerUnknownAccount(t *testing.T) {
	p := newTestProvider(t, StaticPrompter{Secret: "pw"})

	_, err := p.Signer(context.Background(), "0x00000000000000000000000000000000000000Aa")
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestRevokeForcesNewAuthorization(t *testing.T) {
	p := newTestProvider(t, StaticPrompter{Secret: "pw", AutoApprove: true})
	ctx := context.Background()
	addr, err := p.NewAccount("pw")
	require.NoError(t, err)
	_, err = p.RequestAccounts(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Revoke(ctx, addr))
	accounts, err := p.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestTerminalPrompterAuthorize(t *testing.T) {
	var out bytes.Buffer
	p := NewTerminalPrompter(strings.NewReader("2\n"), &out, -1)

	got, err := p.Authorize(context.Background(), testOrigin, []core.Account{"0xA", "0xB"})
	require.NoError(t, err)
	assert.Equal(t, core.Account("0xB"), got)
	assert.Contains(t, out.String(), "[2] 0xB")
}

func TestTerminalPrompterRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: "\n"},
		{name: "out of range", input: "9\n"},
		{name: "not a number", input: "yes\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTerminalPrompter(strings.NewReader(tt.input), &bytes.Buffer{}, -1)
			_, err := p.Authorize(context.Background(), testOrigin, []core.Account{"0xA"})
			assert.ErrorIs(t, err, ErrRejected)
		})
	}
}

func TestTerminalPrompterPassphraseFromPipe(t *testing.T) {
	p := NewTerminalPrompter(strings.NewReader("s3cret\n"), &bytes.Buffer{}, -1)

	pass, err := p.Passphrase(context.Background(), "0xA")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pass)
}

func TestTerminalPrompterHonoursContext(t *testing.T) {
	blocked, w := io.Pipe()
	defer w.Close()
	p := NewTerminalPrompter(blocked, &bytes.Buffer{}, -1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Authorize(ctx, testOrigin, []core.Account{"0xA"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTerminalPrompterAfterCancelledPrompt(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()
	p := NewTerminalPrompter(in, &bytes.Buffer{}, -1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Authorize(ctx, testOrigin, []core.Account{"0xA"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		// The first line answers the abandoned prompt.
		_, _ = io.WriteString(w, "\n")
		_, _ = io.WriteString(w, "1\n")
	}()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	got, err := p.Authorize(ctx2, testOrigin, []core.Account{"0xA"})
	require.NoError(t, err)
	assert.Equal(t, core.Account("0xA"), got)
}

package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ledgerchat/internal/core"
	"github.com/vovakirdan/ledgerchat/internal/store"
)

var (
	// ErrNoKeys is returned when authorization is requested but the keystore is empty.
	ErrNoKeys = errors.New("keystore has no accounts")
	// ErrUnknownAccount is returned when the keystore does not hold the account's key.
	ErrUnknownAccount = errors.New("account not in keystore")
)

// ChainIDReader reports the chain the RPC endpoint serves. *ethclient.Client satisfies it.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Options configures a Provider.
type Options struct {
	KeystoreDir string
	// LightScrypt trades key encryption strength for speed; for tests and throwaway keys.
	LightScrypt bool
	// Origin scopes grants, normally the chat contract address.
	Origin string
	// ChainID is used when non-zero; otherwise it is read from Chain on first signer request.
	ChainID int64
}

// Provider is the identity/transaction provider: a local keystore whose accounts must be
// authorized (once, persisted as grants) before a session may use them.
type Provider struct {
	keys   *keystore.KeyStore
	grants store.GrantStore
	prompt Prompter
	chain  ChainIDReader
	origin string
	log    *zerolog.Logger

	chainMu sync.Mutex
	chainID *big.Int
}

// New opens the keystore directory.
func New(opts Options, grants store.GrantStore, prompt Prompter, chain ChainIDReader, logger *zerolog.Logger) *Provider {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	scryptN, scryptP := keystore.StandardScryptN, keystore.StandardScryptP
	if opts.LightScrypt {
		scryptN, scryptP = keystore.LightScryptN, keystore.LightScryptP
	}

	p := &Provider{
		keys:   keystore.NewKeyStore(opts.KeystoreDir, scryptN, scryptP),
		grants: grants,
		prompt: prompt,
		chain:  chain,
		origin: opts.Origin,
		log:    logger,
	}
	if opts.ChainID != 0 {
		p.chainID = big.NewInt(opts.ChainID)
	}
	return p
}

// Accounts returns previously authorized accounts whose keys are still present.
func (p *Provider) Accounts(ctx context.Context) ([]core.Account, error) {
	grants, err := p.grants.ListGrants(ctx, p.origin)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}

	out := make([]core.Account, 0, len(grants))
	for _, g := range grants {
		addr := common.HexToAddress(g.Account)
		if !p.keys.HasAddress(addr) {
			p.log.Debug().Str("account", g.Account).Msg("skipping grant without key")
			continue
		}
		out = append(out, core.Account(addr.Hex()))
	}
	return out, nil
}

// Keys lists every account in the keystore, authorized or not.
func (p *Provider) Keys() []core.Account {
	available := p.keys.Accounts()
	out := make([]core.Account, 0, len(available))
	for _, a := range available {
		out = append(out, core.Account(a.Address.Hex()))
	}
	return out
}

// RequestAccounts asks the user to authorize one keystore account and records the grant.
// It blocks for as long as the prompter does.
func (p *Provider) RequestAccounts(ctx context.Context) ([]core.Account, error) {
	choices := p.Keys()
	if len(choices) == 0 {
		return nil, ErrNoKeys
	}

	chosen, err := p.prompt.Authorize(ctx, p.origin, choices)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	if !p.keys.HasAddress(common.HexToAddress(string(chosen))) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, chosen)
	}

	if _, err := p.grants.SaveGrant(ctx, p.origin, string(chosen)); err != nil {
		return nil, fmt.Errorf("save grant: %w", err)
	}
	p.log.Info().Str("account", string(chosen)).Str("origin", p.origin).Msg("account authorized")
	return []core.Account{chosen}, nil
}

// Signer unlocks the account's key and returns transact options bound to it.
func (p *Provider) Signer(ctx context.Context, account core.Account) (*bind.TransactOpts, error) {
	acct := accounts.Account{Address: common.HexToAddress(string(account))}
	if !p.keys.HasAddress(acct.Address) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}

	chainID, err := p.resolveChainID(ctx)
	if err != nil {
		return nil, err
	}

	passphrase, err := p.prompt.Passphrase(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("passphrase: %w", err)
	}
	if err := p.keys.Unlock(acct, passphrase); err != nil {
		return nil, fmt.Errorf("unlock %s: %w", account, err)
	}

	opts, err := bind.NewKeyStoreTransactorWithChainID(p.keys, acct, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	return opts, nil
}

// Revoke removes the grant for account; the next connect prompts again.
func (p *Provider) Revoke(ctx context.Context, account core.Account) error {
	if err := p.grants.RevokeGrant(ctx, p.origin, string(account)); err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}
	return nil
}

// NewAccount creates a key encrypted with passphrase.
func (p *Provider) NewAccount(passphrase string) (core.Account, error) {
	if passphrase == "" {
		return "", errors.New("passphrase is required")
	}
	a, err := p.keys.NewAccount(passphrase)
	if err != nil {
		return "", fmt.Errorf("new account: %w", err)
	}
	return core.Account(a.Address.Hex()), nil
}

func (p *Provider) resolveChainID(ctx context.Context) (*big.Int, error) {
	p.chainMu.Lock()
	defer p.chainMu.Unlock()

	if p.chainID != nil {
		return p.chainID, nil
	}
	if p.chain == nil {
		return nil, errors.New("chain id unknown: no rpc connection")
	}
	id, err := p.chain.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	p.chainID = id
	return id, nil
}

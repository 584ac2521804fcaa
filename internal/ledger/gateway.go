package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ledgerchat/internal/core"
)

//go:embed chat.abi.json
var chatABIJSON string

// ChatABI is the parsed interface of the deployed chat contract.
var ChatABI = mustParseABI(chatABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse chat abi: %v", err))
	}
	return parsed
}

// Backend is what the gateway needs from an RPC connection. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// contract is the subset of *bind.BoundContract used by the gateway.
type contract interface {
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

// chatMessage mirrors the contract's Message struct for ABI decoding.
type chatMessage struct {
	Sender    common.Address
	Receiver  common.Address
	IpfsHash  string
	Timestamp *big.Int
}

// Client binds gateways for the chat contract at a fixed address.
type Client struct {
	address         common.Address
	backend         Backend
	finalityTimeout time.Duration
	log             *zerolog.Logger
}

// NewClient creates a client. finalityTimeout of zero waits for finality indefinitely.
func NewClient(address common.Address, backend Backend, finalityTimeout time.Duration, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		address:         address,
		backend:         backend,
		finalityTimeout: finalityTimeout,
		log:             logger,
	}
}

// Bind returns a gateway that signs with signer on behalf of account.
func (c *Client) Bind(account core.Account, signer *bind.TransactOpts) (*Gateway, error) {
	if signer == nil {
		return nil, errors.New("bind gateway: nil signer")
	}
	bound := bind.NewBoundContract(c.address, ChatABI, c.backend, c.backend, c.backend)
	logger := c.log.With().Str("contract", c.address.Hex()).Str("account", string(account)).Logger()
	return newGateway(bound, c.backend, account, signer, c.finalityTimeout, &logger), nil
}

// Gateway is one signed connection to the chat contract.
// After Close every call fails with core.ErrNotConnected.
type Gateway struct {
	contract        contract
	receipts        bind.DeployBackend
	account         core.Account
	signer          *bind.TransactOpts
	finalityTimeout time.Duration
	log             *zerolog.Logger

	// submitMu serializes Transact so that concurrent sends read distinct
	// pending nonces.
	submitMu sync.Mutex
	closed   atomic.Bool
}

func newGateway(c contract, receipts bind.DeployBackend, account core.Account, signer *bind.TransactOpts, finalityTimeout time.Duration, logger *zerolog.Logger) *Gateway {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Gateway{
		contract:        c,
		receipts:        receipts,
		account:         account,
		signer:          signer,
		finalityTimeout: finalityTimeout,
		log:             logger,
	}
}

// Tx is the handle of a submitted sendMessage transaction.
type Tx struct {
	tx *types.Transaction
}

// Hash returns the transaction hash in hex.
func (t *Tx) Hash() string {
	return t.tx.Hash().Hex()
}

// Account returns the account the gateway signs for.
func (g *Gateway) Account() core.Account {
	return g.account
}

// Close marks the gateway stale.
func (g *Gateway) Close() {
	if g.closed.CompareAndSwap(false, true) {
		g.log.Debug().Msg("gateway closed")
	}
}

func (g *Gateway) stale() bool {
	return g == nil || g.closed.Load()
}

// Submit sends sendMessage(receiver, ref) and returns without waiting for inclusion.
func (g *Gateway) Submit(ctx context.Context, receiver core.Account, ref core.ContentRef) (core.TxHandle, error) {
	if g.stale() {
		return nil, core.NewError(core.KindNotConnected, nil)
	}
	if !common.IsHexAddress(string(receiver)) {
		return nil, core.NewError(core.KindInvalidReceiver, fmt.Errorf("%q is not a hex address", receiver))
	}

	opts := *g.signer
	opts.Context = ctx
	g.submitMu.Lock()
	tx, err := g.contract.Transact(&opts, "sendMessage", common.HexToAddress(string(receiver)), string(ref))
	g.submitMu.Unlock()
	if err != nil {
		return nil, core.NewError(core.KindSubmissionRejected, err)
	}

	g.log.Debug().Str("tx", tx.Hash().Hex()).Uint64("nonce", tx.Nonce()).Msg("sendMessage submitted")
	return &Tx{tx: tx}, nil
}

// AwaitFinality blocks until the transaction's receipt is available.
func (g *Gateway) AwaitFinality(ctx context.Context, handle core.TxHandle) error {
	if g.stale() {
		return core.NewError(core.KindNotConnected, nil)
	}
	t, ok := handle.(*Tx)
	if !ok || t == nil || t.tx == nil {
		return core.NewError(core.KindInvalidInput, fmt.Errorf("unknown transaction handle %T", handle))
	}

	if g.finalityTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.finalityTimeout)
		defer cancel()
	}

	receipt, err := bind.WaitMined(ctx, g.receipts, t.tx)
	if g.stale() {
		return core.NewError(core.KindNotConnected, nil)
	}
	if err != nil {
		return core.NewError(core.KindProviderTimeout, fmt.Errorf("wait for %s: %w", t.Hash(), err))
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return core.NewError(core.KindTransactionReverted, fmt.Errorf("tx %s reverted in block %v", t.Hash(), receipt.BlockNumber))
	}

	g.log.Debug().Str("tx", t.Hash()).Str("block", receipt.BlockNumber.String()).Msg("transaction mined")
	return nil
}

// FetchAll reads the complete message list via getMessages().
func (g *Gateway) FetchAll(ctx context.Context) ([]core.MessageRecord, error) {
	if g.stale() {
		return nil, core.NewError(core.KindNotConnected, nil)
	}

	var out []interface{}
	err := g.contract.Call(g.callOpts(ctx), &out, "getMessages")
	if g.stale() {
		return nil, core.NewError(core.KindNotConnected, nil)
	}
	if err != nil {
		return nil, core.NewError(core.KindReadError, fmt.Errorf("call getMessages: %w", err))
	}
	if len(out) == 0 {
		return nil, core.NewError(core.KindReadError, errors.New("getMessages returned no values"))
	}

	rows, err := decodeMessages(out[0])
	if err != nil {
		return nil, core.NewError(core.KindReadError, err)
	}

	records := make([]core.MessageRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRecord(row))
	}
	return records, nil
}

// CountFor returns userMessageCount(account).
func (g *Gateway) CountFor(ctx context.Context, account core.Account) (uint64, error) {
	if g.stale() {
		return 0, core.NewError(core.KindNotConnected, nil)
	}
	if !common.IsHexAddress(string(account)) {
		return 0, core.NewError(core.KindInvalidReceiver, fmt.Errorf("%q is not a hex address", account))
	}

	var out []interface{}
	if err := g.contract.Call(g.callOpts(ctx), &out, "userMessageCount", common.HexToAddress(string(account))); err != nil {
		return 0, core.NewError(core.KindReadError, fmt.Errorf("call userMessageCount: %w", err))
	}
	if len(out) == 0 {
		return 0, core.NewError(core.KindReadError, errors.New("userMessageCount returned no values"))
	}
	count, ok := out[0].(*big.Int)
	if !ok || count == nil {
		return 0, core.NewError(core.KindReadError, fmt.Errorf("unexpected userMessageCount type %T", out[0]))
	}
	return count.Uint64(), nil
}

func (g *Gateway) callOpts(ctx context.Context) *bind.CallOpts {
	opts := &bind.CallOpts{Context: ctx}
	if common.IsHexAddress(string(g.account)) {
		opts.From = common.HexToAddress(string(g.account))
	}
	return opts
}

func decodeMessages(v interface{}) (rows []chatMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode getMessages result %T: %v", v, r)
		}
	}()
	converted, ok := abi.ConvertType(v, new([]chatMessage)).(*[]chatMessage)
	if !ok {
		return nil, fmt.Errorf("decode getMessages result %T", v)
	}
	return *converted, nil
}

func toRecord(m chatMessage) core.MessageRecord {
	var ts int64
	if m.Timestamp != nil {
		ts = m.Timestamp.Int64()
	}
	return core.MessageRecord{
		Sender:     core.Account(m.Sender.Hex()),
		Receiver:   core.Account(m.Receiver.Hex()),
		ContentRef: core.ContentRef(m.IpfsHash),
		Timestamp:  ts,
	}
}

var (
	_ core.Gateway = (*Gateway)(nil)
	_ core.Counter = (*Gateway)(nil)
)

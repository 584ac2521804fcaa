package wallet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/vovakirdan/ledgerchat/internal/core"
)

// ErrRejected is returned when the user declines an authorization request.
var ErrRejected = errors.New("authorization rejected")

// Prompter is the interactive half of the provider.
type Prompter interface {
	// Authorize asks which of accounts may be used against origin.
	Authorize(ctx context.Context, origin string, accounts []core.Account) (core.Account, error)
	// Passphrase asks for the key passphrase of account.
	Passphrase(ctx context.Context, account core.Account) (string, error)
}

// StaticPrompter answers from configuration, for non-interactive hosts.
type StaticPrompter struct {
	// Account picks a specific account; empty picks the first.
	Account     core.Account
	Secret      string
	AutoApprove bool
}

func (p StaticPrompter) Authorize(_ context.Context, _ string, accounts []core.Account) (core.Account, error) {
	if !p.AutoApprove {
		return "", fmt.Errorf("%w: auto-approve disabled", ErrRejected)
	}
	if p.Account == "" {
		return accounts[0], nil
	}
	for _, a := range accounts {
		if strings.EqualFold(string(a), string(p.Account)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownAccount, p.Account)
}

func (p StaticPrompter) Passphrase(context.Context, core.Account) (string, error) {
	return p.Secret, nil
}

// TerminalPrompter asks on a terminal. Passphrases are read without echo when in is a TTY.
//
// All reads happen on one goroutine. A prompt abandoned through ctx leaves its read
// pending; the next input answers that stale prompt and is discarded.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
	// FD is the file descriptor of In, used for no-echo input; -1 disables it.
	FD int

	reader *bufio.Reader
	once   sync.Once
	reqs   chan readRequest
}

type readRequest struct {
	secret bool
	done   chan readResult
}

type readResult struct {
	s   string
	err error
}

// NewTerminalPrompter builds a prompter over in/out.
func NewTerminalPrompter(in io.Reader, out io.Writer, fd int) *TerminalPrompter {
	return &TerminalPrompter{In: in, Out: out, FD: fd, reader: bufio.NewReader(in)}
}

func (p *TerminalPrompter) Authorize(ctx context.Context, origin string, accounts []core.Account) (core.Account, error) {
	fmt.Fprintf(p.Out, "Authorize an account for %s:\n", origin)
	for i, a := range accounts {
		fmt.Fprintf(p.Out, "  [%d] %s\n", i+1, a)
	}
	fmt.Fprint(p.Out, "Select account (empty to reject): ")

	line, err := p.read(ctx, false)
	if err != nil {
		return "", err
	}
	if line == "" {
		return "", ErrRejected
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(accounts) {
		return "", fmt.Errorf("%w: invalid choice %q", ErrRejected, line)
	}
	return accounts[n-1], nil
}

func (p *TerminalPrompter) Passphrase(ctx context.Context, account core.Account) (string, error) {
	fmt.Fprintf(p.Out, "Passphrase for %s: ", account)
	return p.read(ctx, p.FD >= 0 && term.IsTerminal(p.FD))
}

// read hands a request to the reader goroutine and waits for it or for ctx.
func (p *TerminalPrompter) read(ctx context.Context, secret bool) (string, error) {
	p.once.Do(func() {
		if p.reader == nil {
			p.reader = bufio.NewReader(p.In)
		}
		p.reqs = make(chan readRequest)
		go p.readLoop()
	})

	req := readRequest{secret: secret, done: make(chan readResult, 1)}
	select {
	case p.reqs <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case r := <-req.done:
		return r.s, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *TerminalPrompter) readLoop() {
	for req := range p.reqs {
		if req.secret {
			b, err := term.ReadPassword(p.FD)
			fmt.Fprintln(p.Out)
			req.done <- readResult{s: string(b), err: err}
			continue
		}
		line, err := p.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			req.done <- readResult{err: err}
			continue
		}
		req.done <- readResult{s: strings.TrimSpace(line)}
	}
}

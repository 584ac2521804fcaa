package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	stdhttp "net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	shell "github.com/ipfs/go-ipfs-api"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ledgerchat/internal/core"
)

// DefaultTimeout bounds store requests when Config.Timeout is unset. Uploads are
// not cancellable through ctx, so the client timeout is what releases them.
const DefaultTimeout = 30 * time.Second

// Config describes the IPFS HTTP API endpoint.
type Config struct {
	Protocol      string
	Host          string
	Port          int
	ProjectID     string // basic-auth user for hosted gateways
	ProjectSecret string
	Pin           bool
	Timeout       time.Duration
}

// Endpoint returns protocol://host:port.
func (c Config) Endpoint() string {
	proto := c.Protocol
	if proto == "" {
		proto = "https"
	}
	return fmt.Sprintf("%s://%s", proto, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}

// Resolver uploads message bodies to IPFS and returns their CIDs.
// The underlying shell is created on first use, not at construction.
type Resolver struct {
	cfg Config
	log *zerolog.Logger

	once sync.Once
	sh   *shell.Shell
}

// New creates a resolver without touching the network.
func New(cfg Config, logger *zerolog.Logger) *Resolver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Resolver{cfg: cfg, log: logger}
}

func (r *Resolver) shell() *shell.Shell {
	r.once.Do(func() {
		client := &stdhttp.Client{
			Timeout:   r.cfg.Timeout,
			Transport: stdhttp.DefaultTransport,
		}
		if r.cfg.ProjectID != "" {
			client.Transport = &basicAuthTransport{
				user:   r.cfg.ProjectID,
				secret: r.cfg.ProjectSecret,
				next:   stdhttp.DefaultTransport,
			}
		}
		r.sh = shell.NewShellWithClient(r.cfg.Endpoint(), client)
		r.log.Debug().Str("endpoint", r.cfg.Endpoint()).Msg("content store client initialized")
	})
	return r.sh
}

type addResult struct {
	hash string
	err  error
}

// Resolve uploads content and returns its CID. Every call performs an upload.
func (r *Resolver) Resolve(ctx context.Context, content []byte) (core.ContentRef, error) {
	if err := ctx.Err(); err != nil {
		return "", core.NewError(core.KindStoreUnavailable, err)
	}

	sh := r.shell()
	done := make(chan addResult, 1)
	go func() {
		hash, err := sh.Add(bytes.NewReader(content), shell.Pin(r.cfg.Pin))
		done <- addResult{hash: hash, err: err}
	}()

	var res addResult
	select {
	case <-ctx.Done():
		return "", core.NewError(core.KindStoreUnavailable, ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return "", core.NewError(core.KindStoreUnavailable, fmt.Errorf("ipfs add: %w", res.err))
	}

	c, err := cid.Decode(res.hash)
	if err != nil {
		return "", core.NewError(core.KindEncodingError, fmt.Errorf("store returned %q: %w", res.hash, err))
	}

	r.log.Debug().Str("cid", c.String()).Int("bytes", len(content)).Msg("content added")
	return core.ContentRef(c.String()), nil
}

// Fetch downloads the content behind ref.
func (r *Resolver) Fetch(ctx context.Context, ref core.ContentRef) ([]byte, error) {
	if _, err := cid.Decode(string(ref)); err != nil {
		return nil, core.NewError(core.KindEncodingError, fmt.Errorf("invalid content ref %q: %w", ref, err))
	}
	if err := ctx.Err(); err != nil {
		return nil, core.NewError(core.KindStoreUnavailable, err)
	}

	resp, err := r.shell().Request("cat", string(ref)).Send(ctx)
	if err != nil {
		return nil, core.NewError(core.KindStoreUnavailable, fmt.Errorf("ipfs cat: %w", err))
	}
	defer resp.Close()
	if resp.Error != nil {
		return nil, core.NewError(core.KindStoreUnavailable, fmt.Errorf("ipfs cat: %w", resp.Error))
	}

	data, err := io.ReadAll(resp.Output)
	if err != nil {
		return nil, core.NewError(core.KindStoreUnavailable, fmt.Errorf("read %s: %w", ref, err))
	}
	return data, nil
}

type basicAuthTransport struct {
	user   string
	secret string
	next   stdhttp.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *stdhttp.Request) (*stdhttp.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.user, t.secret)
	return t.next.RoundTrip(clone)
}

var _ core.Resolver = (*Resolver)(nil)

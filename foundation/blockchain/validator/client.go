package validator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/network"
)

// ClientConfig represents the configuration required to reach the
// authority.
type ClientConfig struct {
	Host      string
	Timeout   time.Duration
	EvHandler database.EventHandler
}

// Client submits blocks to a remote authority and reads its canonical
// chain. There is no local fallback when the authority can't be reached.
type Client struct {
	baseURL   string
	client    *http.Client
	evHandler database.EventHandler
}

// NewClient constructs a client for the authority at the specified host.
func NewClient(cfg ClientConfig) *Client {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:   fmt.Sprintf("http://%s/v1/node", cfg.Host),
		client:    &http.Client{Timeout: timeout},
		evHandler: ev,
	}
}

// Submit sends the block to the authority for a decision.
func (c *Client) Submit(ctx context.Context, block database.Block) (Result, error) {
	c.evHandler("validator: Client: Submit: blk[%d]: hash[%s]", block.Header.Number, block.Hash)

	var res Result
	if err := network.Send(ctx, c.client, http.MethodPost, c.baseURL+"/validator/submit", block, &res); err != nil {
		return Result{}, classify(err)
	}

	return res, nil
}

// Chain retrieves the canonical chain from the authority.
func (c *Client) Chain(ctx context.Context) ([]database.Block, error) {
	var blocks []database.Block
	if err := network.Send(ctx, c.client, http.MethodGet, c.baseURL+"/chain", nil, &blocks); err != nil {
		return nil, classify(err)
	}

	return blocks, nil
}

// PublicKey retrieves the public key the authority stamps blocks with.
func (c *Client) PublicKey(ctx context.Context) (string, error) {
	var resp struct {
		PublicKey string `json:"public_key"`
	}
	if err := network.Send(ctx, c.client, http.MethodGet, c.baseURL+"/validator/key", nil, &resp); err != nil {
		return "", classify(err)
	}

	if resp.PublicKey == "" {
		return "", fmt.Errorf("%w: authority has no public key", database.ErrAuthorityUnavailable)
	}

	return resp.PublicKey, nil
}

// classify maps transport failures and server errors to
// ErrAuthorityUnavailable.
func classify(err error) error {
	var se *network.StatusError
	if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError {
		return fmt.Errorf("authority rejected request: %w", err)
	}

	return fmt.Errorf("%w: %s", database.ErrAuthorityUnavailable, err)
}

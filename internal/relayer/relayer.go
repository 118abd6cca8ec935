// Package relayer polls relay endpoints for signed proof payloads and feeds
// them into the verification pipeline. Relayers are untrusted: everything
// they deliver is verified before any state changes.
package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"oracle-pricefeed/internal/oracle"
)

// maxPayloadBytes bounds a single relay response body.
const maxPayloadBytes = 4 << 20

// Ingestor is the verification pipeline's write entry point.
type Ingestor interface {
	VerifyAndIngest(ctx context.Context, payload []byte) ([]oracle.PriceEntry, error)
}

// Options parameterise the relay poller.
type Options struct {
	Endpoints []string
	Timeout   time.Duration
	UserAgent string
}

// Relayer fetches batches over HTTP.
type Relayer struct {
	opts   Options
	logger zerolog.Logger
	client *http.Client
}

// New constructs a relay poller.
func New(opts Options, logger zerolog.Logger) *Relayer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Relayer{
		opts:   opts,
		logger: logger.With().Str("component", "relayer").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// PollOnce fetches and ingests one batch from every configured endpoint. A
// failing endpoint does not stop the others; all failures are joined into the
// returned error.
func (r *Relayer) PollOnce(ctx context.Context, ing Ingestor) error {
	if len(r.opts.Endpoints) == 0 {
		return errors.New("no relay endpoints configured")
	}

	var errs []error
	for _, endpoint := range r.opts.Endpoints {
		payload, err := r.fetch(ctx, endpoint)
		if err != nil {
			r.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("fetch failed")
			errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
			continue
		}
		if len(payload) == 0 {
			r.logger.Debug().Str("endpoint", endpoint).Msg("endpoint had no batch")
			continue
		}

		accepted, err := ing.VerifyAndIngest(ctx, payload)
		if err != nil {
			r.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("batch rejected")
			errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
			continue
		}

		r.logger.Info().Str("endpoint", endpoint).Int("accepted", len(accepted)).Msg("batch applied")
	}
	return errors.Join(errs...)
}

// fetch retrieves one payload. Endpoints answer with {"payload":"0x..."} and
// an empty payload field when no batch is pending.
func (r *Relayer) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if r.opts.UserAgent != "" {
		req.Header.Set("User-Agent", r.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var envelope struct {
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Payload == "" {
		return nil, nil
	}

	payload, err := hexutil.Decode(envelope.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload hex: %w", err)
	}
	return payload, nil
}

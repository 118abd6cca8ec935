package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"oracle-pricefeed/internal/oracle"
)

// Fanout dispatches each event to every configured notifier. Individual
// failures are logged and do not stop the remaining channels.
type Fanout struct {
	notifiers []oracle.Notifier
	logger    zerolog.Logger
}

// NewFanout builds a fan-out over the given notifiers.
func NewFanout(logger zerolog.Logger, notifiers ...oracle.Notifier) *Fanout {
	return &Fanout{
		notifiers: notifiers,
		logger:    logger.With().Str("component", "alert_fanout").Logger(),
	}
}

// Notify forwards the event to every channel.
func (f *Fanout) Notify(ctx context.Context, ev oracle.Event) error {
	for _, n := range f.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			f.logger.Warn().Err(err).Str("event", ev.Type.String()).Msg("channel failed")
		}
	}
	return nil
}

// LogNotifier writes every event to the structured log. It is always wired so
// the event stream is observable without external channels.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier builds a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "events").Logger()}
}

// Notify logs the event with its typed fields.
func (n *LogNotifier) Notify(_ context.Context, ev oracle.Event) error {
	entry := n.logger.Info().Str("event", ev.Type.String())
	switch ev.Type {
	case oracle.EventKeyAdded, oracle.EventKeyRemoved:
		entry = entry.Uint64("committee_id", ev.CommitteeID)
	case oracle.EventRootAccepted:
		entry = entry.Str("root", ev.Root.Hex())
	case oracle.EventPriceUpdated:
		entry = entry.Uint32("pair_id", ev.PairID).
			Str("value", renderValue(ev)).
			Uint64("round", ev.Round)
	case oracle.EventConsistencyChanged:
		entry = entry.Uint32("pair_id", ev.PairID).
			Str("from", ev.From.String()).
			Str("to", ev.To.String()).
			Str("value", renderValue(ev)).
			Uint64("round", ev.Round)
	}
	entry.Msg("oracle event")
	return nil
}

// TelegramNotifier pushes consistency degradations through the Telegram Bot
// API. Other event types are ignored.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram channel.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends a message for transitions into the Inconsistent state.
func (n *TelegramNotifier) Notify(ctx context.Context, ev oracle.Event) error {
	if ev.Type != oracle.EventConsistencyChanged || ev.To != oracle.Inconsistent {
		return nil
	}

	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(ev),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Uint32("pair_id", ev.PairID).Uint64("round", ev.Round).Msg("alert sent (Telegram)")
	return nil
}

func renderMessage(ev oracle.Event) string {
	builder := strings.Builder{}
	builder.WriteString("[Price Consistency Alert]\n")
	builder.WriteString(fmt.Sprintf("Pair: %d\n", ev.PairID))
	builder.WriteString(fmt.Sprintf("State: %s -> %s\n", ev.From, ev.To))
	builder.WriteString(fmt.Sprintf("Value: %s\n", renderValue(ev)))
	builder.WriteString(fmt.Sprintf("Round: %d\n", ev.Round))
	builder.WriteString(fmt.Sprintf("At: %s UTC\n", time.Now().UTC().Format(time.RFC3339)))
	return builder.String()
}

// renderValue scales the raw fixed-point value by its decimal exponent.
func renderValue(ev oracle.Event) string {
	return decimal.NewFromBigInt(ev.Value.ToBig(), -int32(ev.Decimal)).String()
}

var _ oracle.Notifier = (*Fanout)(nil)
var _ oracle.Notifier = (*LogNotifier)(nil)
var _ oracle.Notifier = (*TelegramNotifier)(nil)

// Package relaybridge implements the sidecar worker that connects the relay
// core to the external Hoppie ACARS network.
//
// Each polling cycle does two things:
//   - drain: Pending messages tagged OutboundToExternal are posted to the
//     Hoppie connect endpoint and marked Delivered or Failed.
//   - poll: for every online station, inbound traffic is fetched, the
//     brace-delimited block format is parsed, and each block is injected
//     through the trusted inbound path with a dedupe key so redelivered
//     blocks are dropped.
//
// The bridge is a caller of the operation layer like any other; it holds no
// store access of its own and every state change goes through RelayService.
package relaybridge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atcnet/acars-relay/internal/config"
	"github.com/atcnet/acars-relay/internal/domain"
	"github.com/atcnet/acars-relay/internal/services"
)

// blockRE matches one brace-delimited message block in a Hoppie poll
// response, e.g. "{JST460 telex REQUEST PREDEP CLEARANCE}".
var blockRE = regexp.MustCompile(`\{(.*?)\}`)

// pollBlock is one parsed inbound message block.
type pollBlock struct {
	Identifier  string // originating callsign/station
	MessageType string // e.g. "telex", "cpdlc"
	Payload     string
}

// Bridge drains outbound traffic to, and polls inbound traffic from, the
// external network.
type Bridge struct {
	Svc *services.RelayService
	Cfg config.HoppieConfig
	Log zerolog.Logger

	// HTTP is the client used against the connect endpoint; nil means a
	// default with a 15s timeout.
	HTTP *http.Client
}

// New constructs a Bridge for the given service and config.
func New(svc *services.RelayService, cfg config.HoppieConfig, log zerolog.Logger) *Bridge {
	return &Bridge{
		Svc:  svc,
		Cfg:  cfg,
		Log:  log,
		HTTP: &http.Client{Timeout: 15 * time.Second},
	}
}

func (b *Bridge) client() *http.Client {
	if b.HTTP != nil {
		return b.HTTP
	}
	return http.DefaultClient
}

// Run executes polling cycles until ctx is cancelled. Errors within a cycle
// are logged and do not stop the loop; the external network being down must
// never take the relay core with it.
func (b *Bridge) Run(ctx context.Context) {
	t := time.NewTicker(b.Cfg.PollInterval)
	defer t.Stop()

	b.Log.Info().
		Str("url", b.Cfg.URL).
		Dur("interval", b.Cfg.PollInterval).
		Msg("relay bridge started")

	for {
		select {
		case <-ctx.Done():
			b.Log.Info().Msg("relay bridge stopped")
			return
		case <-t.C:
			b.Cycle(ctx)
		}
	}
}

// Cycle runs one drain-and-poll pass.
func (b *Bridge) Cycle(ctx context.Context) {
	if err := b.drainOutbound(ctx); err != nil {
		b.Log.Error().Err(err).Msg("outbound drain failed")
	}
	if err := b.pollInbound(ctx); err != nil {
		b.Log.Error().Err(err).Msg("inbound poll failed")
	}
}

// drainOutbound posts each pending outbound message to the external network
// and records the delivery outcome.
func (b *Bridge) drainOutbound(ctx context.Context) error {
	pending, err := b.Svc.ListPendingOutbound(ctx, b.Cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, m := range pending {
		okResp, err := b.connect(ctx, url.Values{
			"logon":  {b.Cfg.Logon},
			"from":   {m.SenderCode},
			"to":     {m.ReceiverCode},
			"type":   {"telex"},
			"packet": {m.Payload},
		})
		status := statusFor(okResp, err)
		if err != nil {
			b.Log.Warn().Err(err).Uint64("message_id", m.ID).Msg("relay post failed")
		}
		if uerr := b.Svc.UpdateMessageStatus(ctx, m.ID, status); uerr != nil {
			b.Log.Error().Err(uerr).Uint64("message_id", m.ID).Msg("status update failed")
		}
	}
	return nil
}

// pollInbound fetches traffic addressed to each online station and injects
// every parsed block through the inbound path.
func (b *Bridge) pollInbound(ctx context.Context) error {
	stations, err := b.Svc.Roster(ctx, true)
	if err != nil {
		return err
	}

	for _, st := range stations {
		body, err := b.connectRaw(ctx, url.Values{
			"logon":  {b.Cfg.Logon},
			"from":   {st.StationCode},
			"to":     {st.StationCode},
			"type":   {"poll"},
			"packet": {""},
		})
		if err != nil {
			b.Log.Warn().Err(err).Str("station", st.StationCode).Msg("poll failed")
			continue
		}

		for _, blk := range parsePollBlocks(body) {
			key := dedupeKey(st.StationCode, blk)
			if _, err := b.Svc.ReceiveInbound(ctx, blk.Identifier, st.StationCode, blk.Payload, key); err != nil {
				b.Log.Error().Err(err).Str("station", st.StationCode).Msg("inbound inject failed")
			}
		}
	}
	return nil
}

// connect posts a form to the connect endpoint and reports whether the
// network acknowledged it ("ok" prefix in the response body).
func (b *Bridge) connect(ctx context.Context, form url.Values) (bool, error) {
	body, err := b.connectRaw(ctx, form)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.TrimSpace(body), "ok"), nil
}

// connectRaw posts a form to the connect endpoint and returns the raw body.
func (b *Bridge) connectRaw(ctx context.Context, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Cfg.URL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// statusFor maps a post outcome to a message status.
func statusFor(acked bool, err error) domain.MessageStatus {
	if err == nil && acked {
		return domain.StatusDelivered
	}
	return domain.StatusFailed
}

// parsePollBlocks extracts the brace-delimited blocks from a poll response.
// Each block is "IDENTIFIER type rest-of-message"; malformed blocks are
// skipped.
func parsePollBlocks(body string) []pollBlock {
	matches := blockRE.FindAllStringSubmatch(body, -1)
	out := make([]pollBlock, 0, len(matches))
	for _, m := range matches {
		parts := strings.SplitN(strings.TrimSpace(m[1]), " ", 3)
		if len(parts) < 3 {
			continue
		}
		out = append(out, pollBlock{
			Identifier:  parts[0],
			MessageType: parts[1],
			Payload:     parts[2],
		})
	}
	return out
}

// dedupeKey derives a stable identifier for an inbound block. Hoppie does
// not assign message ids, so the receiving station plus block content stand
// in for one.
func dedupeKey(station string, blk pollBlock) string {
	h := sha256.Sum256([]byte(station + "|" + blk.Identifier + "|" + blk.MessageType + "|" + blk.Payload))
	return hex.EncodeToString(h[:16])
}

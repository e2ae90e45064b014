package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mutual/internal/domain"
	"mutual/internal/engine"
	"mutual/internal/repo"
)

const (
	notifyInterval = 2 * time.Second
	notifyTimeout  = 5 * time.Second
	notifyBatch    = 100
)

// notifier pushes draft and publication events to the configured webhook
// endpoints. Each endpoint keeps its own position in the event log, so a
// failing endpoint is retried from where it stopped without holding back the
// others.
type notifier struct {
	events  repo.Repo
	log     *slog.Logger
	targets []*hookTarget
}

type hookTarget struct {
	url    string
	secret string
	filter eventFilter
	client *http.Client
	// seen is the last event ID handled; -1 until the target is primed.
	seen int64
}

// StartWebhooks notifies the configured webhooks of new pipeline events until
// ctx is done. Only events appended after start are delivered.
func StartWebhooks(ctx context.Context, e engine.Engine) {
	n := newNotifier(e)
	if n == nil {
		return
	}
	go n.run(ctx)
}

func newNotifier(e engine.Engine) *notifier {
	if e.Config == nil {
		return nil
	}
	var targets []*hookTarget
	for _, hook := range e.Config.Webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		timeout := notifyTimeout
		if hook.TimeoutSeconds > 0 {
			timeout = time.Duration(hook.TimeoutSeconds) * time.Second
		}
		targets = append(targets, &hookTarget{
			url:    hook.URL,
			secret: strings.TrimSpace(hook.Secret),
			filter: newEventFilter(hook.Events),
			client: &http.Client{Timeout: timeout},
			seen:   -1,
		})
	}
	if len(targets) == 0 {
		return nil
	}
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	return &notifier{events: e.Repo, log: log.With("component", "webhooks"), targets: targets}
}

func (n *notifier) run(ctx context.Context) {
	ticker := time.NewTicker(notifyInterval)
	defer ticker.Stop()
	for {
		n.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll reads one batch of events past the slowest target and hands it to
// every target. It is not safe to call concurrently.
func (n *notifier) poll(ctx context.Context) {
	from, err := n.prime(ctx)
	if err != nil {
		n.log.Warn("read event log position failed", "error", err)
		return
	}
	batch, err := n.events.EventsAfter(ctx, notifyBatch, from)
	if err != nil {
		n.log.Warn("fetch events failed", "error", err)
		return
	}
	for _, t := range n.targets {
		n.deliver(ctx, t, batch)
	}
}

// prime starts new targets at the end of the log and returns the lowest
// position among all targets.
func (n *notifier) prime(ctx context.Context) (int64, error) {
	var latest int64 = -1
	from := int64(-1)
	for _, t := range n.targets {
		if t.seen < 0 {
			if latest < 0 {
				id, err := n.events.LatestEventID(ctx)
				if err != nil {
					return 0, err
				}
				latest = id
			}
			t.seen = latest
		}
		if from < 0 || t.seen < from {
			from = t.seen
		}
	}
	return from, nil
}

func (n *notifier) deliver(ctx context.Context, t *hookTarget, batch []domain.Event) {
	for _, evt := range batch {
		if evt.ID <= t.seen {
			continue
		}
		if t.filter.match(evt.Type) {
			if err := t.post(ctx, evt); err != nil {
				n.log.Warn("delivery failed", "url", t.url, "event_id", evt.ID, "error", err)
				return
			}
		}
		t.seen = evt.ID
	}
}

// notification is the JSON body posted for one event.
type notification struct {
	Delivery   int64           `json:"delivery"`
	Event      string          `json:"event"`
	Kind       string          `json:"kind"`
	ID         string          `json:"id,omitempty"`
	Owner      string          `json:"owner"`
	OccurredAt string          `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

func newNotification(evt domain.Event) notification {
	data := json.RawMessage(`{}`)
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		data = json.RawMessage(evt.Payload)
	}
	return notification{
		Delivery:   evt.ID,
		Event:      evt.Type,
		Kind:       evt.EntityKind,
		ID:         evt.EntityID,
		Owner:      evt.ActorID,
		OccurredAt: evt.TS,
		Data:       data,
	}
}

func (t *hookTarget) post(ctx context.Context, evt domain.Event) error {
	body, err := json.Marshal(newNotification(evt))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Mutual-Event", evt.Type)
	req.Header.Set("X-Mutual-Delivery", strconv.FormatInt(evt.ID, 10))
	if t.secret != "" {
		req.Header.Set("X-Mutual-Secret", t.secret)
		req.Header.Set("X-Mutual-Signature", "sha256="+signPayload(t.secret, body))
	}
	res, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// signPayload is the hex HMAC-SHA256 of body under secret.
func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// eventFilter lists the event types a hook wants. An entry ending in ".*"
// selects a whole family, such as "draft.*". An empty filter selects all.
type eventFilter []string

func newEventFilter(events []string) eventFilter {
	var f eventFilter
	for _, evt := range events {
		if evt = strings.TrimSpace(evt); evt != "" {
			f = append(f, evt)
		}
	}
	return f
}

func (f eventFilter) match(evt string) bool {
	if len(f) == 0 {
		return true
	}
	for _, want := range f {
		if want == evt || want == "*" {
			return true
		}
		if family, ok := strings.CutSuffix(want, "*"); ok && strings.HasSuffix(family, ".") && strings.HasPrefix(evt, family) {
			return true
		}
	}
	return false
}

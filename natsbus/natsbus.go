// Package natsbus publishes ledger events to NATS JetStream.
//
// Every event is a JSON envelope on a subject of the form
// "<prefix>.<resource>.<action>", for example "cocoa.sack.delivered".
// The envelope id doubles as the JetStream message id, so a redelivered
// hook within the stream's duplicate window is dropped by the server.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/plugin"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/tip"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/warrant"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Bus)(nil)
	_ plugin.OnShutdown         = (*Bus)(nil)
	_ plugin.OnFarmerRegistered = (*Bus)(nil)
	_ plugin.OnSackDelivered    = (*Bus)(nil)
	_ plugin.OnBagsPacked       = (*Bus)(nil)
	_ plugin.OnBatchesCreated   = (*Bus)(nil)
	_ plugin.OnWarrantIssued    = (*Bus)(nil)
	_ plugin.OnLenderRegistered = (*Bus)(nil)
	_ plugin.OnBundleCreated    = (*Bus)(nil)
	_ plugin.OnBundleFunded     = (*Bus)(nil)
	_ plugin.OnBatchSettled     = (*Bus)(nil)
	_ plugin.OnInvoiceSettled   = (*Bus)(nil)
	_ plugin.OnSettlementFailed = (*Bus)(nil)
	_ plugin.OnTipRecorded      = (*Bus)(nil)
)

// DefaultPrefix is the subject prefix and the stream's subject root.
const DefaultPrefix = "cocoa"

// Publisher is the subset of jetstream.JetStream the bus needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Event is the envelope published for every ledger event.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Bus is a plugin that forwards ledger events to JetStream.
type Bus struct {
	js     Publisher
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithPrefix overrides the subject prefix.
func WithPrefix(prefix string) Option {
	return func(b *Bus) { b.prefix = prefix }
}

// WithClock sets the time source for envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// New creates a Bus publishing through js.
func New(js Publisher, opts ...Option) *Bus {
	b := &Bus{
		js:     js,
		prefix: DefaultPrefix,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config holds connection settings for Connect.
type Config struct {
	URL            string        `json:"url" mapstructure:"url" yaml:"url"`
	Stream         string        `json:"stream" mapstructure:"stream" yaml:"stream"`
	ConnectionName string        `json:"connection_name" mapstructure:"connection_name" yaml:"connection_name"`
	MaxReconnects  int           `json:"max_reconnects" mapstructure:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait  time.Duration `json:"reconnect_wait" mapstructure:"reconnect_wait" yaml:"reconnect_wait"`
}

// Connect dials NATS, ensures the stream exists and returns a Bus that
// owns the connection.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Bus, error) {
	b := New(nil, opts...)
	if cfg.Stream == "" {
		cfg.Stream = "COCOA"
	}
	if cfg.ConnectionName == "" {
		cfg.ConnectionName = "cocoa"
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("natsbus: disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.logger.Info("natsbus: reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natsbus: connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsbus: jetstream: %w", err)
	}
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{b.prefix + ".>"},
		Storage:    jetstream.FileStorage,
		Duplicates: 10 * time.Minute,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsbus: ensure stream %s: %w", cfg.Stream, err)
	}

	b.js = js
	b.conn = nc
	return b, nil
}

// Name implements plugin.Plugin.
func (b *Bus) Name() string { return "natsbus" }

// Subject returns the full subject for an event type.
func (b *Bus) Subject(eventType string) string {
	return b.prefix + "." + eventType
}

// OnShutdown drains the connection when the bus owns it.
func (b *Bus) OnShutdown(_ context.Context) error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Drain()
}

// OnFarmerRegistered implements plugin.OnFarmerRegistered.
func (b *Bus) OnFarmerRegistered(ctx context.Context, f *farmer.Farmer) error {
	return b.publish(ctx, "farmer.registered", f.ID.String(), f)
}

// OnSackDelivered implements plugin.OnSackDelivered.
func (b *Bus) OnSackDelivered(ctx context.Context, s *sack.Sack, debt *token.Entry) error {
	return b.publish(ctx, "sack.delivered", s.ID.String(), struct {
		Sack *sack.Sack   `json:"sack"`
		Debt *token.Entry `json:"debt,omitempty"`
	}{s, debt})
}

// OnBagsPacked implements plugin.OnBagsPacked.
func (b *Bus) OnBagsPacked(ctx context.Context, bags []*bag.Bag) error {
	for _, bg := range bags {
		if err := b.publish(ctx, "bag.packed", bg.ID.String(), bg); err != nil {
			return err
		}
	}
	return nil
}

// OnBatchesCreated implements plugin.OnBatchesCreated.
func (b *Bus) OnBatchesCreated(ctx context.Context, batches []*batch.Batch) error {
	for _, bt := range batches {
		if err := b.publish(ctx, "batch.created", bt.ID.String(), bt); err != nil {
			return err
		}
	}
	return nil
}

// OnWarrantIssued implements plugin.OnWarrantIssued.
func (b *Bus) OnWarrantIssued(ctx context.Context, r *warrant.Receipt) error {
	return b.publish(ctx, "warrant.issued", r.ID.String(), r)
}

// OnLenderRegistered implements plugin.OnLenderRegistered.
func (b *Bus) OnLenderRegistered(ctx context.Context, l *lender.Lender) error {
	return b.publish(ctx, "lender.registered", l.ID.String(), l)
}

// OnBundleCreated implements plugin.OnBundleCreated.
func (b *Bus) OnBundleCreated(ctx context.Context, bd *bundle.Bundle) error {
	return b.publish(ctx, "bundle.created", bd.ID.String(), bd)
}

// OnBundleFunded implements plugin.OnBundleFunded.
func (b *Bus) OnBundleFunded(ctx context.Context, bd *bundle.Bundle, l *lender.Lender, amount types.Money) error {
	key := fmt.Sprintf("%s:%s:%d", bd.ID, l.ID, b.now().UnixNano())
	return b.publish(ctx, "bundle.funded", key, struct {
		BundleID string        `json:"bundle_id"`
		LenderID string        `json:"lender_id"`
		Amount   types.Money   `json:"amount"`
		Status   bundle.Status `json:"status"`
	}{bd.ID.String(), l.ID.String(), amount, bd.Status})
}

// OnBatchSettled implements plugin.OnBatchSettled.
func (b *Bus) OnBatchSettled(ctx context.Context, inv *invoice.Invoice, bs *invoice.BatchSettlement) error {
	return b.publish(ctx, "settlement.batch", inv.ID.String()+":"+bs.BatchID.String(), struct {
		InvoiceID  string                   `json:"invoice_id"`
		Settlement *invoice.BatchSettlement `json:"settlement"`
	}{inv.ID.String(), bs})
}

// OnInvoiceSettled implements plugin.OnInvoiceSettled.
func (b *Bus) OnInvoiceSettled(ctx context.Context, inv *invoice.Invoice) error {
	return b.publish(ctx, "invoice.settled", inv.ID.String(), inv)
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (b *Bus) OnSettlementFailed(ctx context.Context, inv *invoice.Invoice, cause error) error {
	key := fmt.Sprintf("%s:failed:%d", inv.ID, len(inv.SettledBatches))
	return b.publish(ctx, "invoice.failed", key, struct {
		Invoice *invoice.Invoice `json:"invoice"`
		Error   string           `json:"error"`
	}{inv, cause.Error()})
}

// OnTipRecorded implements plugin.OnTipRecorded.
func (b *Bus) OnTipRecorded(ctx context.Context, t *tip.Tip) error {
	return b.publish(ctx, "tip.recorded", t.ID.String(), t)
}

func (b *Bus) publish(ctx context.Context, eventType, key string, data any) error {
	evt := Event{
		ID:         eventType + ":" + key,
		Type:       eventType,
		OccurredAt: b.now().UTC(),
		Data:       data,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("natsbus: marshal %s: %w", eventType, err)
	}
	subject := b.Subject(eventType)
	if _, err := b.js.Publish(ctx, subject, payload, jetstream.WithMsgID(evt.ID)); err != nil {
		return fmt.Errorf("natsbus: publish %s: %w", subject, err)
	}
	b.logger.Debug("natsbus: published", "subject", subject, "id", evt.ID)
	return nil
}

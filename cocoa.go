package cocoa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/lock"
	"github.com/xraph/cocoa/plugin"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/types"
)

const (
	// DefaultBagCapacityKg is the maximum weight of a bag.
	DefaultBagCapacityKg = 63
	// DefaultBatchCapacityKg is the maximum weight of a batch (60 MT).
	DefaultBatchCapacityKg = 60000
	// DefaultOperatorName names the farmer record that receives the
	// operator's share of settlements.
	DefaultOperatorName = "EcoWise Enterprise"

	lockKey = "ledger"
)

// Ledger is the cocoa supply-chain engine. Every mutating operation holds
// the ledger lock and commits through a single store transaction;
// settlement commits once per batch.
type Ledger struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	locker   lock.Locker
	validate *validator.Validate

	// Configuration
	currency       string
	operatorName   string
	lenientFilters bool
	bagCapacity    decimal.Decimal
	batchCapacity  decimal.Decimal
	now            func() time.Time
	newID          id.Generator
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		locker:        lock.NewLocal(),
		validate:      newValidator(),
		currency:      types.DefaultCurrency,
		operatorName:  DefaultOperatorName,
		bagCapacity:   decimal.NewFromInt(DefaultBagCapacityKg),
		batchCapacity: decimal.NewFromInt(DefaultBatchCapacityKg),
		now:           time.Now,
		newID:         id.New,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithLocker replaces the in-process single-writer lock, typically with
// lock.NewRedis when several processes share a store.
func WithLocker(locker lock.Locker) Option {
	return func(l *Ledger) {
		l.locker = locker
	}
}

// WithCurrency sets the settlement currency.
func WithCurrency(currency string) Option {
	return func(l *Ledger) {
		l.currency = strings.ToLower(currency)
	}
}

// WithOperatorName sets the display name of the operator farmer.
func WithOperatorName(name string) Option {
	return func(l *Ledger) {
		l.operatorName = name
	}
}

// WithLenientFilters makes unknown bundle filter keys a logged warning
// instead of an error.
func WithLenientFilters() Option {
	return func(l *Ledger) {
		l.lenientFilters = true
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithBagCapacity overrides the bag capacity in kilograms.
func WithBagCapacity(kg decimal.Decimal) Option {
	return func(l *Ledger) {
		l.bagCapacity = kg
	}
}

// WithBatchCapacity overrides the batch capacity in kilograms.
func WithBatchCapacity(kg decimal.Decimal) Option {
	return func(l *Ledger) {
		l.batchCapacity = kg
	}
}

// WithIDGenerator replaces TypeID generation, mostly for tests.
func WithIDGenerator(gen id.Generator) Option {
	return func(l *Ledger) {
		l.newID = gen
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("cocoa ledger started",
		"currency", l.currency,
		"bag_capacity_kg", l.bagCapacity.String(),
		"batch_capacity_kg", l.batchCapacity.String(),
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Currency returns the settlement currency.
func (l *Ledger) Currency() string { return l.currency }

// exclusive runs fn while holding the ledger lock.
func (l *Ledger) exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	held, err := l.locker.Obtain(ctx, lockKey)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := held.Release(context.WithoutCancel(ctx)); relErr != nil {
			l.logger.Warn("failed to release ledger lock", "error", relErr)
		}
	}()
	return fn(ctx)
}

// tx runs fn under the ledger lock inside one store transaction.
func (l *Ledger) tx(ctx context.Context, fn store.TxFunc) error {
	return l.exclusive(ctx, func(ctx context.Context) error {
		return l.store.Tx(ctx, fn)
	})
}

func (l *Ledger) stamp() types.Entity {
	return types.EntityAt(l.now())
}

// money normalizes m to the ledger currency.
func (l *Ledger) money(field string, m types.Money) (types.Money, error) {
	if m.Currency == "" {
		m.Currency = l.currency
	}
	m.Currency = strings.ToLower(m.Currency)
	if m.Currency != l.currency {
		return m, ValidationError{Field: field, Message: fmt.Sprintf("currency must be %s", l.currency)}
	}
	return m, nil
}

func (l *Ledger) positive(field string, m types.Money) (types.Money, error) {
	m, err := l.money(field, m)
	if err != nil {
		return m, err
	}
	if !m.IsPositive() {
		return m, ValidationError{Field: field, Message: "must be greater than zero"}
	}
	return m, nil
}

func (l *Ledger) nonNegative(field string, m types.Money) (types.Money, error) {
	m, err := l.money(field, m)
	if err != nil {
		return m, err
	}
	if m.IsNegative() {
		return m, ValidationError{Field: field, Message: "must not be negative"}
	}
	return m, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates struct tags and reports the first failure as a
// ValidationError.
func (l *Ledger) check(in any) error {
	err := l.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		msg := "failed " + fe.Tag()
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "email":
			msg = "must be a valid email address"
		case "oneof":
			msg = "must be one of: " + fe.Param()
		case "max":
			msg = "must be at most " + fe.Param() + " characters"
		}
		return ValidationError{Field: fe.Field(), Message: msg}
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

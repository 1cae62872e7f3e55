package observability_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/observability"
	"github.com/xraph/cocoa/store/memory"
	"github.com/xraph/cocoa/types"
)

type fakeFactory struct {
	mu       sync.Mutex
	counters map[string]float64
	observed map[string][]float64
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{counters: map[string]float64{}, observed: map[string][]float64{}}
}

func (f *fakeFactory) Counter(name string) observability.Counter {
	return &fakeCounter{f: f, name: name}
}

func (f *fakeFactory) Histogram(name string) observability.Histogram {
	return &fakeHistogram{f: f, name: name}
}

func (f *fakeFactory) count(name string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[name]
}

func (f *fakeFactory) values(name string) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.observed[name]
}

type fakeCounter struct {
	f    *fakeFactory
	name string
}

func (c *fakeCounter) Inc() { c.Add(1) }

func (c *fakeCounter) Add(v float64) {
	c.f.mu.Lock()
	c.f.counters[c.name] += v
	c.f.mu.Unlock()
}

type fakeHistogram struct {
	f    *fakeFactory
	name string
}

func (h *fakeHistogram) Observe(v float64) {
	h.f.mu.Lock()
	h.f.observed[h.name] = append(h.f.observed[h.name], v)
	h.f.mu.Unlock()
}

func TestMetricsExtension_CountsLedgerEvents(t *testing.T) {
	ctx := context.Background()
	factory := newFakeFactory()

	l := cocoa.New(memory.New(),
		cocoa.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		cocoa.WithPlugin(observability.NewMetricsExtension(factory)),
	)
	require.NoError(t, l.Start(ctx))
	t.Cleanup(func() { _ = l.Stop() })

	f, err := l.RegisterFarmer(ctx, cocoa.RegisterFarmerInput{FirstName: "Ada", LastName: "Okafor"})
	require.NoError(t, err)
	_, err = l.DeliverSack(ctx, cocoa.DeliverSackInput{
		FarmerID:  f.ID,
		WeightKg:  decimal.NewFromInt(70),
		ValuePaid: types.NGN(1000_00),
		Warehouse: "Ondo-1",
	})
	require.NoError(t, err)

	bags, err := l.AutoPackBags(ctx)
	require.NoError(t, err)
	require.Len(t, bags, 2)

	_, err = l.MintInternal(ctx, f.ID, types.NGN(50_00), "bonus")
	require.NoError(t, err)

	assert.Equal(t, 1.0, factory.count("cocoa.farmer.registered"))
	assert.Equal(t, 1.0, factory.count("cocoa.sack.delivered"))
	assert.Equal(t, []float64{70}, factory.values("cocoa.sack.weight_kg"))
	assert.Equal(t, []float64{1000_00}, factory.values("cocoa.sack.value"))
	assert.Equal(t, 2.0, factory.count("cocoa.bag.packed"))
	assert.Equal(t, []float64{63, 7}, factory.values("cocoa.bag.weight_kg"))
	assert.Equal(t, 1.0, factory.count("cocoa.token.internal.entries"))
	assert.Zero(t, factory.count("cocoa.invoice.failed"))
}

func TestOtelFactory_GlobalMeter(t *testing.T) {
	m := observability.NewMetricsExtension(observability.NewOtelFactory(nil))
	assert.NotPanics(t, func() {
		m.SacksDelivered.Inc()
		m.FundingAmount.Observe(10)
	})
	assert.Equal(t, "observability-metrics", m.Name())
}

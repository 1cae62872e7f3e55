package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/api"
	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/report"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/store/memory"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/warrant"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := cocoa.New(memory.New(), cocoa.WithLogger(quiet))
	require.NoError(t, l.Start(t.Context()))
	t.Cleanup(func() { _ = l.Stop() })
	return api.New(l, api.WithLogger(quiet))
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func registerFarmer(t *testing.T, h http.Handler) *farmer.Farmer {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/farmers", map[string]any{
		"first_name": "Ada",
		"last_name":  "Okafor",
		"country":    "Nigeria",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[*farmer.Farmer](t, rr)
}

func deliver(t *testing.T, h http.Handler, f *farmer.Farmer, kg string, value int64) *sack.Sack {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/sacks", map[string]any{
		"farmer_id":  f.ID.String(),
		"weight_kg":  kg,
		"value_paid": types.NGN(value),
		"warehouse":  "Ondo-1",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[*sack.Sack](t, rr)
}

func TestHealth(t *testing.T) {
	rr := do(t, newServer(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestFarmers(t *testing.T) {
	h := newServer(t)
	f := registerFarmer(t, h)

	t.Run("Get", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/farmers/"+f.ID.String(), nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Ada Okafor", decode[*farmer.Farmer](t, rr).Name())
	})

	t.Run("ListByCountry", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/farmers?country=Nigeria", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[[]*farmer.Farmer](t, rr), 1)

		rr = do(t, h, http.MethodGet, "/farmers?country=Ghana", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, decode[[]*farmer.Farmer](t, rr))
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/farmers/frm_01h455vb4pex5vsknk084sn02q", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("WrongPrefix", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/farmers/sack_01h455vb4pex5vsknk084sn02q", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "farmerID", decode[map[string]string](t, rr)["field"])
	})

	t.Run("ValidationError", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/farmers", map[string]any{"first_name": "Ada"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "last_name", decode[map[string]string](t, rr)["field"])
	})

	t.Run("UnknownField", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/farmers", map[string]any{"first_name": "Ada", "last_name": "O", "age": 3})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("BadPaging", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/farmers?limit=-1", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestDeliveryMintsDebt(t *testing.T) {
	h := newServer(t)
	f := registerFarmer(t, h)
	deliver(t, h, f, "70", 1000_00)

	rr := do(t, h, http.MethodGet, "/farmers/"+f.ID.String()+"/balances", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	b := decode[*token.Balances](t, rr)
	assert.Equal(t, types.NGN(1000_00), b.Debt)
	assert.True(t, b.Internal.IsZero())

	rr = do(t, h, http.MethodGet, "/farmers/"+f.ID.String()+"/tokens?kind=debt", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]*token.Entry](t, rr), 1)

	rr = do(t, h, http.MethodGet, "/farmers/"+f.ID.String()+"/tokens?kind=gold", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPackAndSettle(t *testing.T) {
	h := newServer(t)
	f := registerFarmer(t, h)
	s := deliver(t, h, f, "70", 1000_00)

	rr := do(t, h, http.MethodPost, "/bags/auto", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	bags := decode[[]*bag.Bag](t, rr)
	require.Len(t, bags, 2)
	assert.Equal(t, "63", bags[0].TotalWeight().String())
	assert.Equal(t, "7", bags[1].TotalWeight().String())

	rr = do(t, h, http.MethodPost, "/bags/auto", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/warrants", map[string]any{
		"type":        warrant.TypePreProcessing,
		"covered_ids": []string{bags[0].ID.String(), bags[1].ID.String()},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/warrants", map[string]any{
		"type":        warrant.TypePreProcessing,
		"covered_ids": []string{bags[0].ID.String()},
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodPost, "/batches/auto", map[string]any{"product_type": batch.ProductLiquor})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	batches := decode[[]*batch.Batch](t, rr)
	require.Len(t, batches, 1)

	rr = do(t, h, http.MethodGet, "/batches/"+batches[0].ID.String()+"/composition?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, report.ContentType, rr.Header().Get("Content-Type"))
	wb, err := excelize.OpenReader(rr.Body)
	require.NoError(t, err)
	rows, err := wb.GetRows("Composition")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	_ = wb.Close()

	rr = do(t, h, http.MethodPost, "/invoices", map[string]any{
		"batch_ids":          []string{batches[0].ID.String()},
		"amount_paid":        types.NGN(500_00),
		"percent_to_farmers": "0.5",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	settlement := decode[*cocoa.Settlement](t, rr)
	require.Len(t, settlement.Batches, 1)
	assert.Equal(t, types.NGN(500_00), settlement.Batches[0].DebtBurned)
	assert.Equal(t, types.NGN(250_00), settlement.Batches[0].ToFarmers)
	assert.Equal(t, types.NGN(250_00), settlement.Batches[0].ToOperator)

	rr = do(t, h, http.MethodPost, "/invoices/"+settlement.Invoice.ID.String()+"/resume", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodGet, "/sacks/"+s.ID.String()+"/trace", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	trace := decode[*cocoa.Trace](t, rr)
	assert.Len(t, trace.Bags, 2)
	assert.Len(t, trace.Batches, 1)

	rr = do(t, h, http.MethodGet, "/farmers/"+f.ID.String()+"/balances", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	b := decode[*token.Balances](t, rr)
	assert.Equal(t, types.NGN(500_00), b.Debt)
	assert.Equal(t, types.NGN(250_00), b.Internal)
}

func TestLendersAndBundles(t *testing.T) {
	h := newServer(t)

	rr := do(t, h, http.MethodPost, "/lenders", map[string]any{
		"wallet_address": "0xabc",
		"position":       types.NGN(100_00),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/lenders", map[string]any{"wallet_address": "0xABC"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodGet, "/bundles/eligible?key=planet&value=mars", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/bundles/eligible", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[*cocoa.Eligible](t, rr).Sacks)
}

func TestBalancesReport(t *testing.T) {
	h := newServer(t)
	f := registerFarmer(t, h)
	deliver(t, h, f, "10", 150_00)

	rr := do(t, h, http.MethodGet, "/reports/balances?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "balances.xlsx")

	wb, err := excelize.OpenReader(rr.Body)
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()
	rows, err := wb.GetRows("Balances")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ada Okafor", rows[1][1])
	assert.Equal(t, "150", rows[1][3])
}

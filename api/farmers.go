package api

import (
	"net/http"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/report"
	"github.com/xraph/cocoa/tip"
	"github.com/xraph/cocoa/token"
)

func (h *Handler) registerFarmer(w http.ResponseWriter, r *http.Request) {
	var in cocoa.RegisterFarmerInput
	if !h.decode(w, r, &in) {
		return
	}
	f, err := h.ledger.RegisterFarmer(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) listFarmers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	farmers, err := h.ledger.ListFarmers(r.Context(), farmer.ListOpts{
		Country:      q.Get("country"),
		City:         q.Get("city"),
		Gender:       q.Get("gender"),
		NameContains: q.Get("name"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, farmers)
}

func (h *Handler) getFarmer(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.pathID(w, r, "farmerID", id.PrefixFarmer)
	if !ok {
		return
	}
	f, err := h.ledger.GetFarmer(r.Context(), farmerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) operator(w http.ResponseWriter, r *http.Request) {
	op, err := h.ledger.Operator(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (h *Handler) farmerBalances(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.pathID(w, r, "farmerID", id.PrefixFarmer)
	if !ok {
		return
	}
	b, err := h.ledger.Balances(r.Context(), farmerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) farmerTokens(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.pathID(w, r, "farmerID", id.PrefixFarmer)
	if !ok {
		return
	}
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	kind := token.Kind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		h.writeError(w, r, cocoa.ValidationError{Field: "kind", Message: "must be one of: debt internal"})
		return
	}
	entries, err := h.ledger.TokenHistory(r.Context(), token.ListOpts{
		FarmerID: farmerID,
		Kind:     kind,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) farmerTips(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.pathID(w, r, "farmerID", id.PrefixFarmer)
	if !ok {
		return
	}
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	tips, err := h.ledger.ListTips(r.Context(), tip.ListOpts{FarmerID: farmerID, Limit: limit, Offset: offset})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tips)
}

// balancesReport returns every farmer's balances, as JSON or a workbook.
func (h *Handler) balancesReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	farmers, err := h.ledger.ListFarmers(ctx, farmer.ListOpts{Country: r.URL.Query().Get("country")})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rows := make([]report.FarmerBalance, 0, len(farmers))
	for _, f := range farmers {
		b, err := h.ledger.Balances(ctx, f.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		rows = append(rows, report.FarmerBalance{Farmer: f, Balances: b})
	}

	if wantsXLSX(r) {
		h.writeWorkbook(w, r, "balances", report.Balances(rows))
		return
	}
	out := make([]*token.Balances, len(rows))
	for i, fb := range rows {
		out[i] = fb.Balances
	}
	writeJSON(w, http.StatusOK, out)
}

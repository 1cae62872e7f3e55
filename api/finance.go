package api

import (
	"net/http"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/report"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
)

// ==================== Lenders ====================

func (h *Handler) registerLender(w http.ResponseWriter, r *http.Request) {
	var in cocoa.RegisterLenderInput
	if !h.decode(w, r, &in) {
		return
	}
	ln, err := h.ledger.RegisterLender(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ln)
}

func (h *Handler) listLenders(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	lenders, err := h.ledger.ListLenders(r.Context(), lender.ListOpts{
		WalletAddress: r.URL.Query().Get("wallet"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lenders)
}

func (h *Handler) getLender(w http.ResponseWriter, r *http.Request) {
	lenderID, ok := h.pathID(w, r, "lenderID", id.PrefixLender)
	if !ok {
		return
	}
	ln, err := h.ledger.GetLender(r.Context(), lenderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ln)
}

type positionRequest struct {
	Position types.Money `json:"position"`
}

func (h *Handler) setLenderPosition(w http.ResponseWriter, r *http.Request) {
	lenderID, ok := h.pathID(w, r, "lenderID", id.PrefixLender)
	if !ok {
		return
	}
	var req positionRequest
	if !h.decode(w, r, &req) {
		return
	}
	ln, err := h.ledger.SetLenderPosition(r.Context(), lenderID, req.Position)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ln)
}

// ==================== Bundles ====================

func (h *Handler) eligibleSacks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	eligible, err := h.ledger.EligibleSacks(r.Context(), bundle.Filter{
		Key:   bundle.FilterKey(q.Get("key")),
		Value: q.Get("value"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eligible)
}

func (h *Handler) createBundle(w http.ResponseWriter, r *http.Request) {
	var in cocoa.CreateBundleInput
	if !h.decode(w, r, &in) {
		return
	}
	b, err := h.ledger.CreateBundle(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	summary, err := h.ledger.BundleSummary(r.Context(), b.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (h *Handler) listBundles(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	opts := bundle.ListOpts{
		Status: bundle.Status(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	sackID, ok := h.queryID(w, r, "sack_id", id.PrefixSack)
	if !ok {
		return
	}
	if !sackID.IsNil() {
		opts.SackIDs = []id.SackID{sackID}
	}
	summaries, err := h.ledger.ListBundleSummaries(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) fundableBundles(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.ledger.FundableBundles(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) getBundle(w http.ResponseWriter, r *http.Request) {
	bundleID, ok := h.pathID(w, r, "bundleID", id.PrefixBundle)
	if !ok {
		return
	}
	summary, err := h.ledger.BundleSummary(r.Context(), bundleID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type fundRequest struct {
	LenderID id.LenderID `json:"lender_id"`
	Amount   types.Money `json:"amount"`
}

func (h *Handler) fundBundle(w http.ResponseWriter, r *http.Request) {
	bundleID, ok := h.pathID(w, r, "bundleID", id.PrefixBundle)
	if !ok {
		return
	}
	var req fundRequest
	if !h.decode(w, r, &req) {
		return
	}
	summary, err := h.ledger.FundBundle(r.Context(), req.LenderID, bundleID, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ==================== Tokens ====================

type tokenRequest struct {
	FarmerID    id.FarmerID `json:"farmer_id"`
	Kind        token.Kind  `json:"kind,omitempty"`
	Amount      types.Money `json:"amount"`
	Description string      `json:"description"`
}

func (h *Handler) listTokens(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	farmerID, ok := h.queryID(w, r, "farmer_id", id.PrefixFarmer)
	if !ok {
		return
	}
	entries, err := h.ledger.TokenHistory(r.Context(), token.ListOpts{
		FarmerID: farmerID,
		Kind:     token.Kind(r.URL.Query().Get("kind")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) mintInternal(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.ledger.MintInternal(r.Context(), req.FarmerID, req.Amount, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) burn(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	var (
		e   *token.Entry
		err error
	)
	switch req.Kind {
	case token.KindDebt:
		e, err = h.ledger.BurnDebt(r.Context(), req.FarmerID, req.Amount, req.Description)
	case token.KindInternal:
		e, err = h.ledger.BurnInternal(r.Context(), req.FarmerID, req.Amount, req.Description)
	default:
		err = cocoa.ValidationError{Field: "kind", Message: "must be one of: debt internal"}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) tip(w http.ResponseWriter, r *http.Request) {
	var in cocoa.TipInput
	if !h.decode(w, r, &in) {
		return
	}
	t, err := h.ledger.Tip(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ==================== Invoices ====================

// partialSettlement is returned when a settlement stops part way.
type partialSettlement struct {
	errorBody
	Settlement *cocoa.Settlement `json:"settlement"`
}

func (h *Handler) settleInvoice(w http.ResponseWriter, r *http.Request) {
	var in cocoa.SettleInput
	if !h.decode(w, r, &in) {
		return
	}
	s, err := h.ledger.SettleInvoice(r.Context(), in)
	h.writeSettlement(w, r, http.StatusCreated, s, err)
}

func (h *Handler) resumeSettlement(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.pathID(w, r, "invoiceID", id.PrefixInvoice)
	if !ok {
		return
	}
	s, err := h.ledger.ResumeSettlement(r.Context(), invoiceID)
	h.writeSettlement(w, r, http.StatusOK, s, err)
}

func (h *Handler) writeSettlement(w http.ResponseWriter, r *http.Request, status int, s *cocoa.Settlement, err error) {
	if err != nil {
		if s == nil {
			h.writeError(w, r, err)
			return
		}
		h.logger.Warn("settlement stopped", "invoice_id", s.Invoice.ID.String(), "error", err)
		writeJSON(w, statusFor(err), partialSettlement{errorBody: errorBody{Error: err.Error()}, Settlement: s})
		return
	}
	if wantsXLSX(r) {
		h.writeWorkbook(w, r, s.Invoice.ID.String(), report.Settlement(s)...)
		return
	}
	writeJSON(w, status, s)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	invoices, err := h.ledger.ListInvoices(r.Context(), invoice.ListOpts{
		Status: invoice.Status(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.pathID(w, r, "invoiceID", id.PrefixInvoice)
	if !ok {
		return
	}
	inv, err := h.ledger.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

package api

import (
	"net/http"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/report"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/warrant"
)

// ==================== Sacks ====================

func (h *Handler) deliverSack(w http.ResponseWriter, r *http.Request) {
	var in cocoa.DeliverSackInput
	if !h.decode(w, r, &in) {
		return
	}
	s, err := h.ledger.DeliverSack(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) listSacks(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	farmerID, ok := h.queryID(w, r, "farmer_id", id.PrefixFarmer)
	if !ok {
		return
	}
	sacks, err := h.ledger.ListSacks(r.Context(), sack.ListOpts{FarmerID: farmerID, Limit: limit, Offset: offset})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sacks)
}

func (h *Handler) getSack(w http.ResponseWriter, r *http.Request) {
	sackID, ok := h.pathID(w, r, "sackID", id.PrefixSack)
	if !ok {
		return
	}
	s, err := h.ledger.GetSack(r.Context(), sackID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) traceSack(w http.ResponseWriter, r *http.Request) {
	sackID, ok := h.pathID(w, r, "sackID", id.PrefixSack)
	if !ok {
		return
	}
	tr, err := h.ledger.SackTrace(r.Context(), sackID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// ==================== Bags ====================

type createBagRequest struct {
	Allocations []bag.Allocation `json:"allocations"`
}

func (h *Handler) createBag(w http.ResponseWriter, r *http.Request) {
	var req createBagRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.ledger.CreateBag(r.Context(), req.Allocations)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) autoPackBags(w http.ResponseWriter, r *http.Request) {
	bags, err := h.ledger.AutoPackBags(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if bags == nil {
		bags = []*bag.Bag{}
	}
	writeJSON(w, http.StatusOK, bags)
}

func (h *Handler) listBags(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	sackID, ok := h.queryID(w, r, "sack_id", id.PrefixSack)
	if !ok {
		return
	}
	bags, err := h.ledger.ListBags(r.Context(), bag.ListOpts{
		SackID:    sackID,
		Unbatched: r.URL.Query().Get("unbatched") == "true",
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bags)
}

func (h *Handler) getBag(w http.ResponseWriter, r *http.Request) {
	bagID, ok := h.pathID(w, r, "bagID", id.PrefixBag)
	if !ok {
		return
	}
	b, err := h.ledger.GetBag(r.Context(), bagID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) bagComposition(w http.ResponseWriter, r *http.Request) {
	bagID, ok := h.pathID(w, r, "bagID", id.PrefixBag)
	if !ok {
		return
	}
	comp, err := h.ledger.BagComposition(r.Context(), bagID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if wantsXLSX(r) {
		h.writeWorkbook(w, r, bagID.String(), report.Composition(comp))
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// ==================== Batches ====================

type createBatchRequest struct {
	ProductType batch.ProductType `json:"product_type"`
	BagIDs      []id.BagID        `json:"bag_ids"`
}

type autoPackBatchesRequest struct {
	ProductType batch.ProductType `json:"product_type"`
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	bt, err := h.ledger.CreateBatch(r.Context(), req.ProductType, req.BagIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bt)
}

func (h *Handler) autoPackBatches(w http.ResponseWriter, r *http.Request) {
	var req autoPackBatchesRequest
	if !h.decode(w, r, &req) {
		return
	}
	batches, err := h.ledger.AutoPackBatches(r.Context(), req.ProductType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if batches == nil {
		batches = []*batch.Batch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	bagID, ok := h.queryID(w, r, "bag_id", id.PrefixBag)
	if !ok {
		return
	}
	batches, err := h.ledger.ListBatches(r.Context(), batch.ListOpts{BagID: bagID, Limit: limit, Offset: offset})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.pathID(w, r, "batchID", id.PrefixBatch)
	if !ok {
		return
	}
	bt, err := h.ledger.GetBatch(r.Context(), batchID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bt)
}

func (h *Handler) batchComposition(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.pathID(w, r, "batchID", id.PrefixBatch)
	if !ok {
		return
	}
	comp, err := h.ledger.BatchComposition(r.Context(), batchID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if wantsXLSX(r) {
		h.writeWorkbook(w, r, batchID.String(), report.Composition(comp))
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// ==================== Warrants ====================

type issueWarrantRequest struct {
	Type       warrant.Type `json:"type"`
	CoveredIDs []id.ID      `json:"covered_ids"`
}

func (h *Handler) issueWarrant(w http.ResponseWriter, r *http.Request) {
	var req issueWarrantRequest
	if !h.decode(w, r, &req) {
		return
	}
	rc, err := h.ledger.IssueWarrant(r.Context(), req.Type, req.CoveredIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rc)
}

func (h *Handler) eligibleForWarrant(w http.ResponseWriter, r *http.Request) {
	ids, err := h.ledger.EligibleForWarrant(r.Context(), warrant.Type(r.URL.Query().Get("type")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []id.ID{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handler) listWarrants(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	receipts, err := h.ledger.ListWarrants(r.Context(), warrant.ListOpts{
		Type:   warrant.Type(r.URL.Query().Get("type")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (h *Handler) getWarrant(w http.ResponseWriter, r *http.Request) {
	warrantID, ok := h.pathID(w, r, "warrantID", id.PrefixWarrant)
	if !ok {
		return
	}
	rc, err := h.ledger.GetWarrant(r.Context(), warrantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

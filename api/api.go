// Package api exposes the cocoa ledger over HTTP with a chi router.
//
// Bodies are JSON. Money is {"amount": <minor units>, "currency": "ngn"};
// ids are TypeID strings. Composition, balance and settlement views can be
// downloaded as Excel workbooks with ?format=xlsx.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/cocoa"
)

// Handler serves the ledger's HTTP surface.
type Handler struct {
	ledger  *cocoa.Ledger
	logger  *slog.Logger
	timeout time.Duration
	router  chi.Router
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithTimeout bounds each request. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// New creates a Handler for l.
func New(l *cocoa.Ledger, opts ...Option) *Handler {
	h := &Handler{
		ledger:  l,
		logger:  slog.Default(),
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.router = h.routes()
	return h
}

// Routes returns the router, for mounting under a parent mux.
func (h *Handler) Routes() chi.Router { return h.router }

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewStructuredLogger(h.logger))
	r.Use(middleware.Recoverer)
	if h.timeout > 0 {
		r.Use(middleware.Timeout(h.timeout))
	}

	r.Get("/healthz", h.health)
	r.Get("/operator", h.operator)

	r.Route("/farmers", func(r chi.Router) {
		r.Post("/", h.registerFarmer)
		r.Get("/", h.listFarmers)
		r.Route("/{farmerID}", func(r chi.Router) {
			r.Get("/", h.getFarmer)
			r.Get("/balances", h.farmerBalances)
			r.Get("/tokens", h.farmerTokens)
			r.Get("/tips", h.farmerTips)
		})
	})

	r.Route("/sacks", func(r chi.Router) {
		r.Post("/", h.deliverSack)
		r.Get("/", h.listSacks)
		r.Get("/{sackID}", h.getSack)
		r.Get("/{sackID}/trace", h.traceSack)
	})

	r.Route("/bags", func(r chi.Router) {
		r.Post("/", h.createBag)
		r.Post("/auto", h.autoPackBags)
		r.Get("/", h.listBags)
		r.Get("/{bagID}", h.getBag)
		r.Get("/{bagID}/composition", h.bagComposition)
	})

	r.Route("/batches", func(r chi.Router) {
		r.Post("/", h.createBatch)
		r.Post("/auto", h.autoPackBatches)
		r.Get("/", h.listBatches)
		r.Get("/{batchID}", h.getBatch)
		r.Get("/{batchID}/composition", h.batchComposition)
	})

	r.Route("/warrants", func(r chi.Router) {
		r.Post("/", h.issueWarrant)
		r.Get("/", h.listWarrants)
		r.Get("/eligible", h.eligibleForWarrant)
		r.Get("/{warrantID}", h.getWarrant)
	})

	r.Route("/lenders", func(r chi.Router) {
		r.Post("/", h.registerLender)
		r.Get("/", h.listLenders)
		r.Get("/{lenderID}", h.getLender)
		r.Put("/{lenderID}/position", h.setLenderPosition)
	})

	r.Route("/bundles", func(r chi.Router) {
		r.Post("/", h.createBundle)
		r.Get("/", h.listBundles)
		r.Get("/eligible", h.eligibleSacks)
		r.Get("/fundable", h.fundableBundles)
		r.Get("/{bundleID}", h.getBundle)
		r.Post("/{bundleID}/fundings", h.fundBundle)
	})

	r.Route("/tokens", func(r chi.Router) {
		r.Get("/", h.listTokens)
		r.Post("/mint", h.mintInternal)
		r.Post("/burn", h.burn)
	})
	r.Post("/tips", h.tip)

	r.Route("/invoices", func(r chi.Router) {
		r.Post("/", h.settleInvoice)
		r.Get("/", h.listInvoices)
		r.Get("/{invoiceID}", h.getInvoice)
		r.Post("/{invoiceID}/resume", h.resumeSettlement)
	})

	r.Get("/reports/balances", h.balancesReport)

	return r
}

// ServeHTTP lets a Handler be used directly as an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Store().Ping(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

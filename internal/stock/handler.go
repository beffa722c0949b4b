package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gasdist/stockledger/internal/platform/httpx"
	"github.com/gasdist/stockledger/internal/rbac"
	"github.com/gasdist/stockledger/internal/shared"
)

// ChangeFeed streams ledger versions as they are published.
type ChangeFeed interface {
	Subscribe(ctx context.Context) (<-chan int64, error)
}

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	feed      ChangeFeed
	rbac      rbac.Middleware
	keepAlive time.Duration
}

// NewHandler constructs the stock handler. feed may be nil, which disables the event stream.
func NewHandler(logger *slog.Logger, service *Service, feed ChangeFeed, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, feed: feed, rbac: rbac, keepAlive: 25 * time.Second}
}

// WithKeepAlive sets the interval between keep-alive frames on the event stream.
// It must stay below the server write timeout or the stream dies idle.
func (h *Handler) WithKeepAlive(d time.Duration) *Handler {
	if d > 0 {
		h.keepAlive = d
	}
	return h
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermStockView))
		r.Get("/", h.handleStock)
		r.Get("/summary", h.handleSummary)
		r.Get("/low", h.handleLowStock)
		r.Get("/ledger", h.handleLedger)
		r.Get("/transactions", h.handleTransactions)
		r.Get("/events", h.handleEvents)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermStockRecord))
		r.Post("/receipts", h.handleReceipt)
		r.Post("/distributions", h.handleDistribution)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermStockEdit))
		r.Put("/ledger/{id}", h.handleEditEntry)
		r.Delete("/ledger/{id}", h.handleDeleteEntry)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermStockApprove))
		r.Post("/transactions/{id}/complete", h.handleCompleteTransaction)
	})
}

// MountProductRoutes registers stock-derived product listings under /products.
func (h *Handler) MountProductRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermCatalogView)).Get("/unstocked", h.handleUnstocked)
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.LowStock(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLedgerFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.ListLedgerEntries(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.ListTransactions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txs)
}

func (h *Handler) handleUnstocked(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.UnstockedProducts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	var input ReceiptInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", "invalid JSON payload"))
		return
	}
	input.IdempotencyKey = r.Header.Get("Idempotency-Key")
	result, err := h.service.RecordReceipt(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleDistribution(w http.ResponseWriter, r *http.Request) {
	var input DistributionInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", "invalid JSON payload"))
		return
	}
	input.IdempotencyKey = r.Header.Get("Idempotency-Key")
	result, err := h.service.RecordDistribution(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if result.Transaction.Status == StatusPending {
		status = http.StatusAccepted
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) handleEditEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input LedgerEntryInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", "invalid JSON payload"))
		return
	}
	result, err := h.service.EditLedgerEntry(r.Context(), id, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	refresh, err := h.service.DeleteLedgerEntry(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, refresh)
}

func (h *Handler) handleCompleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.CompleteTransaction(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// handleEvents streams ledger versions as server-sent events.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Change Stream Unavailable", "")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Streaming Unsupported", "")
		return
	}
	ctx := r.Context()
	versions, err := h.feed.Subscribe(ctx)
	if err != nil {
		h.fail(w, r, shared.Storage("subscribe", err))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	current, err := h.service.notifierVersion(ctx)
	if err != nil && h.logger != nil {
		h.logger.Warn("read ledger version", slog.Any("error", err))
	}
	fmt.Fprintf(w, "retry: 3000\nevent: version\ndata: %d\n\n", current)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ver, ok := <-versions:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: version\ndata: %d\n\n", ver)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if h.logger != nil && !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("stock request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseLedgerFilter(r *http.Request) (LedgerFilter, error) {
	q := r.URL.Query()
	var filter LedgerFilter
	verr := &shared.ValidationError{Fields: map[string]string{}}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			verr.Fields["from"] = "must be a date formatted " + DateLayout
		}
		filter.From = t
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			verr.Fields["to"] = "must be a date formatted " + DateLayout
		}
		filter.To = t
	}
	if v := strings.TrimSpace(q.Get("product_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			verr.Fields["product_id"] = "must be a positive integer"
		}
		filter.ProductID = id
	}
	if len(verr.Fields) > 0 {
		return LedgerFilter{}, verr
	}
	return filter, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

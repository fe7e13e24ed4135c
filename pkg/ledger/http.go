package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/crowdfund-client/pkg/app/errors"
	apphttp "github.com/chainsafe/crowdfund-client/pkg/app/http"
)

// ListResponse is returned by GET /transactions
type ListResponse struct {
	Transactions []Transaction `json:"transactions"`
	PendingCount int           `json:"pending_count"`
}

const (
	streamBuffer    = 64
	streamKeepAlive = 15 * time.Second
)

type httpHandler struct {
	ledger *Ledger
	logger *zap.Logger
}

// RegisterRoutes registers the ledger endpoints on the given chi router.
// Mutating routes are wrapped with writeMiddlewares.
func RegisterRoutes(r chi.Router, l *Ledger, logger *zap.Logger, writeMiddlewares ...func(http.Handler) http.Handler) {
	h := &httpHandler{ledger: l, logger: logger}

	r.Get("/transactions", apphttp.HandleError(h.list))
	r.Get("/transactions/stream", h.stream)
	r.Get("/transactions/{hash}", apphttp.HandleError(h.get))
	r.Group(func(r chi.Router) {
		r.Use(writeMiddlewares...)
		r.Delete("/transactions/{hash}", apphttp.HandleError(h.remove))
	})
}

func (h *httpHandler) list(w http.ResponseWriter, r *http.Request) error {
	var txs []Transaction
	switch status := Status(r.URL.Query().Get("status")); status {
	case "":
		txs = h.ledger.List()
	case StatusPending:
		txs = h.ledger.Pending()
	case StatusConfirmed, StatusFailed:
		for _, tx := range h.ledger.List() {
			if tx.Status == status {
				txs = append(txs, tx)
			}
		}
	default:
		return apperrors.BadRequestError(nil, "unknown status filter")
	}
	if txs == nil {
		txs = []Transaction{}
	}

	apphttp.WriteJSON(w, http.StatusOK, &ListResponse{
		Transactions: txs,
		PendingCount: h.ledger.PendingCount(),
	})
	return nil
}

func (h *httpHandler) get(w http.ResponseWriter, r *http.Request) error {
	tx, ok := h.ledger.Get(chi.URLParam(r, "hash"))
	if !ok {
		return apperrors.ResourceNotFoundError(ErrNotFound, "transaction not found")
	}
	apphttp.WriteJSON(w, http.StatusOK, tx)
	return nil
}

func (h *httpHandler) remove(w http.ResponseWriter, r *http.Request) error {
	if err := h.ledger.Remove(chi.URLParam(r, "hash")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.ResourceNotFoundError(err, "transaction not found")
		}
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// stream pushes ledger events as server-sent events until the client goes away
func (h *httpHandler) stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	events, unsubscribe := h.ledger.Subscribe(streamBuffer)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("Transaction stream not supported by response writer", zap.Error(err))
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("Failed to encode ledger event", zap.String("tx_hash", ev.Transaction.Hash), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

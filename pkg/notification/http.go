package notification

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/crowdfund-client/pkg/app/errors"
	apphttp "github.com/chainsafe/crowdfund-client/pkg/app/http"
)

// ListResponse is returned by GET /notifications
type ListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

type httpHandler struct {
	center *Center
	logger *zap.Logger
}

// RegisterRoutes registers the notification endpoints on the given chi router.
// Mutating routes are wrapped with writeMiddlewares.
func RegisterRoutes(r chi.Router, center *Center, logger *zap.Logger, writeMiddlewares ...func(http.Handler) http.Handler) {
	h := &httpHandler{center: center, logger: logger}

	r.Get("/notifications", apphttp.HandleError(h.list))
	r.Group(func(r chi.Router) {
		r.Use(writeMiddlewares...)
		r.Post("/notifications/read-all", apphttp.HandleError(h.markAllRead))
		r.Post("/notifications/{id}/read", apphttp.HandleError(h.markRead))
		r.Delete("/notifications/{id}", apphttp.HandleError(h.remove))
		r.Delete("/notifications", apphttp.HandleError(h.clearAll))
	})
}

func (h *httpHandler) list(w http.ResponseWriter, _ *http.Request) error {
	h.writeList(w)
	return nil
}

func (h *httpHandler) markRead(w http.ResponseWriter, r *http.Request) error {
	if err := h.center.MarkRead(chi.URLParam(r, "id")); err != nil {
		return apperrors.ResourceNotFoundError(err, "notification not found")
	}
	h.writeList(w)
	return nil
}

func (h *httpHandler) markAllRead(w http.ResponseWriter, _ *http.Request) error {
	h.center.MarkAllRead()
	h.writeList(w)
	return nil
}

func (h *httpHandler) remove(w http.ResponseWriter, r *http.Request) error {
	if err := h.center.Remove(chi.URLParam(r, "id")); err != nil {
		return apperrors.ResourceNotFoundError(err, "notification not found")
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *httpHandler) clearAll(w http.ResponseWriter, _ *http.Request) error {
	h.center.ClearAll()
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *httpHandler) writeList(w http.ResponseWriter) {
	apphttp.WriteJSON(w, http.StatusOK, &ListResponse{
		Notifications: h.center.List(),
		UnreadCount:   h.center.UnreadCount(),
	})
}

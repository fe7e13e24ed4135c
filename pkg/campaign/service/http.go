package service

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/crowdfund-client/pkg/app/errors"
	apphttp "github.com/chainsafe/crowdfund-client/pkg/app/http"
	"github.com/chainsafe/crowdfund-client/pkg/auth"
	"github.com/chainsafe/crowdfund-client/pkg/campaign"
)

// ListResponse is returned by GET /campaigns
type ListResponse struct {
	Campaigns []CampaignView `json:"campaigns"`
	Total     int            `json:"total"`
}

// RefreshResponse is returned by POST /campaigns/refresh
type RefreshResponse struct {
	Count int `json:"count"`
}

// ContributeRequest is the body of POST /campaigns/{id}/contributions
type ContributeRequest struct {
	Amount string `json:"amount"`
}

type httpHandler struct {
	svc    Service
	logger *zap.Logger
}

// RegisterRoutes registers the campaign endpoints on the given chi router.
// Routes that submit transactions or hit the chain in bulk are wrapped with
// the given middlewares (typically the operator token check).
func RegisterRoutes(r chi.Router, svc Service, logger *zap.Logger, writeMiddlewares ...func(http.Handler) http.Handler) {
	h := &httpHandler{svc: svc, logger: logger}

	r.Get("/campaigns", apphttp.HandleError(h.list))
	r.Get("/campaigns/selected", apphttp.HandleError(h.selected))
	r.Get("/campaigns/{id}", apphttp.HandleError(h.get))
	r.Get("/campaigns/{id}/progress", apphttp.HandleError(h.progress))
	r.Get("/dashboard/{address}", apphttp.HandleError(h.dashboard))

	r.Group(func(r chi.Router) {
		r.Use(writeMiddlewares...)
		r.Post("/campaigns", apphttp.HandleError(h.create))
		r.Post("/campaigns/refresh", apphttp.HandleError(h.refresh))
		r.Post("/campaigns/{id}/contributions", apphttp.HandleError(h.contribute))
		r.Post("/campaigns/{id}/withdrawals", apphttp.HandleError(h.withdraw))
		r.Post("/campaigns/{id}/refunds", apphttp.HandleError(h.refund))
	})
}

func campaignID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperrors.BadRequestError(err, "invalid campaign id")
	}
	return id, nil
}

func (h *httpHandler) list(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	filter := campaign.Filter{Category: q.Get("category")}

	if creator := q.Get("creator"); creator != "" {
		if !auth.ValidateEVMAddress(creator) {
			return apperrors.BadRequestError(nil, "invalid creator address")
		}
		addr := common.HexToAddress(creator)
		filter.Creator = &addr
	}
	if active := q.Get("active"); active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			return apperrors.BadRequestError(err, "invalid active filter")
		}
		filter.ActiveOnly = v
	}

	views, err := h.svc.ListCampaigns(r.Context(), filter)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &ListResponse{Campaigns: views, Total: len(views)})
	return nil
}

func (h *httpHandler) get(w http.ResponseWriter, r *http.Request) error {
	id, err := campaignID(r)
	if err != nil {
		return err
	}
	view, err := h.svc.GetCampaign(r.Context(), id)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, view)
	return nil
}

func (h *httpHandler) selected(w http.ResponseWriter, r *http.Request) error {
	view, err := h.svc.Selected(r.Context())
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, view)
	return nil
}

func (h *httpHandler) progress(w http.ResponseWriter, r *http.Request) error {
	id, err := campaignID(r)
	if err != nil {
		return err
	}
	resp, err := h.svc.GetProgress(r.Context(), id)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *httpHandler) dashboard(w http.ResponseWriter, r *http.Request) error {
	address := chi.URLParam(r, "address")
	if !auth.ValidateEVMAddress(address) {
		return apperrors.BadRequestError(nil, "invalid address")
	}
	d, err := h.svc.Dashboard(r.Context(), common.HexToAddress(address))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, d)
	return nil
}

func (h *httpHandler) create(w http.ResponseWriter, r *http.Request) error {
	var req campaign.CreateRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	resp, err := h.svc.CreateCampaign(r.Context(), req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusAccepted, resp)
	return nil
}

func (h *httpHandler) refresh(w http.ResponseWriter, r *http.Request) error {
	n, err := h.svc.RefreshAll(r.Context())
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, &RefreshResponse{Count: n})
	return nil
}

func (h *httpHandler) contribute(w http.ResponseWriter, r *http.Request) error {
	id, err := campaignID(r)
	if err != nil {
		return err
	}
	var req ContributeRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	resp, err := h.svc.Contribute(r.Context(), id, req.Amount)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusAccepted, resp)
	return nil
}

func (h *httpHandler) withdraw(w http.ResponseWriter, r *http.Request) error {
	id, err := campaignID(r)
	if err != nil {
		return err
	}
	resp, err := h.svc.Withdraw(r.Context(), id)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusAccepted, resp)
	return nil
}

func (h *httpHandler) refund(w http.ResponseWriter, r *http.Request) error {
	id, err := campaignID(r)
	if err != nil {
		return err
	}
	resp, err := h.svc.Refund(r.Context(), id)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusAccepted, resp)
	return nil
}

package hold

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/service/booking"
	"github.com/jwalitptl/booking-api/internal/service/hold"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

// HeaderIdempotencyKey may carry the key instead of the request body.
const HeaderIdempotencyKey = "Idempotency-Key"

type Handler struct {
	holds    *hold.Service
	bookings *booking.Service
}

func NewHandler(holds *hold.Service, bookings *booking.Service) *Handler {
	return &Handler{holds: holds, bookings: bookings}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	holds := r.Group("/holds")
	{
		holds.POST("", h.CreateHold)
		holds.GET("", h.ListActiveHolds)
		holds.DELETE("/:id", h.CancelHold)
		holds.POST("/:id/confirm", h.ConfirmHold)
	}
}

func (h *Handler) CreateHold(c *gin.Context) {
	var req hold.CreateHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("invalid request body", err))
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader(HeaderIdempotencyKey)
	}

	res, err := h.holds.CreateHold(c.Request.Context(), middleware.BusinessFrom(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	httputil.RespondWithSuccess(c, status, res)
}

func (h *Handler) ListActiveHolds(c *gin.Context) {
	var q hold.ActiveHoldsQuery
	var err error

	if q.ServiceID, err = optionalID(c, "service_id"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if q.StaffID, err = optionalID(c, "staff_id"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if q.From, err = optionalTime(c, "from"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if q.To, err = optionalTime(c, "to"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	holds, err := h.holds.GetActiveHolds(c.Request.Context(), middleware.BusinessFrom(c), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, holds)
}

func (h *Handler) CancelHold(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("invalid hold id", err))
		return
	}

	deleted, err := h.holds.CancelHold(c.Request.Context(), middleware.BusinessFrom(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) ConfirmHold(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("invalid hold id", err))
		return
	}

	var req booking.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("invalid request body", err))
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader(HeaderIdempotencyKey)
	}

	confirmation, err := h.bookings.ConfirmHold(c.Request.Context(), middleware.BusinessFrom(c), id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	status := http.StatusCreated
	if confirmation.Replayed {
		status = http.StatusOK
	}
	httputil.RespondWithSuccess(c, status, confirmation)
}

func optionalID(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.NewValidation(name+" must be a valid id", err)
	}
	return &id, nil
}

func optionalTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.NewValidation(name+" must be an RFC 3339 timestamp", err)
	}
	return &t, nil
}

package availability

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/service/availability"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

type Handler struct {
	service *availability.Service
}

func NewHandler(service *availability.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/availability", h.FindSlots)
}

func (h *Handler) FindSlots(c *gin.Context) {
	serviceID, err := uuid.Parse(c.Query("service_id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("service_id must be a valid id", err))
		return
	}

	q := availability.Query{
		ServiceID: serviceID,
		Date:      c.Query("date"),
	}
	if id := c.Query("staff_id"); id != "" {
		staffID, err := uuid.Parse(id)
		if err != nil {
			httputil.RespondWithError(c, apperrors.NewValidation("staff_id must be a valid id", err))
			return
		}
		q.StaffID = &staffID
	}

	slots, err := h.service.FindSlots(c.Request.Context(), middleware.BusinessFrom(c), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{
		"service_id": serviceID,
		"date":       q.Date,
		"slots":      slots,
	})
}

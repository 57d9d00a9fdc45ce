package offers

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aura-commerce/backend/internal/models"
	"github.com/aura-commerce/backend/internal/schedule"
	"github.com/aura-commerce/backend/pkg/response"
)

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// OfferRequest is the body for POST /admin/offers and PUT /admin/offers/:id.
type OfferRequest struct {
	Title                 string          `json:"title" binding:"required"`
	Description           string          `json:"description"`
	StartDateTime         string          `json:"start_date_time" binding:"required"`
	EndDateTime           string          `json:"end_date_time" binding:"required"`
	ProductIDs            []uuid.UUID     `json:"product_ids"`
	DiscountType          string          `json:"discount_type" binding:"required"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	DiscountStartDateTime *string         `json:"discount_start_date_time"`
	DiscountEndDateTime   *string         `json:"discount_end_date_time"`
	ResetFullDiscount     bool            `json:"reset_full_discount"`
}

func (r *OfferRequest) input() (Input, string) {
	in := Input{
		Title:             r.Title,
		Description:       r.Description,
		ProductIDs:        r.ProductIDs,
		DiscountType:      models.DiscountType(r.DiscountType),
		DiscountAmount:    r.DiscountAmount,
		ResetFullDiscount: r.ResetFullDiscount,
	}
	var err error
	if in.StartDateTime, err = parseTime(r.StartDateTime); err != nil {
		return in, "invalid start_date_time"
	}
	if in.EndDateTime, err = parseTime(r.EndDateTime); err != nil {
		return in, "invalid end_date_time"
	}
	if r.DiscountStartDateTime != nil {
		t, err := parseTime(*r.DiscountStartDateTime)
		if err != nil {
			return in, "invalid discount_start_date_time"
		}
		in.DiscountStartDateTime = &t
	}
	if r.DiscountEndDateTime != nil {
		t, err := parseTime(*r.DiscountEndDateTime)
		if err != nil {
			return in, "invalid discount_end_date_time"
		}
		in.DiscountEndDateTime = &t
	}
	return in, ""
}

// Handler handles offer admin endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an offer handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /admin/offers.
func (h *Handler) Create(c *gin.Context) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in, msg := req.input()
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	o, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, "failed to create offer")
		return
	}
	response.Created(c, o)
}

// GetByID handles GET /admin/offers/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := offerID(c)
	if !ok {
		return
	}
	o, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to load offer")
		return
	}
	response.OK(c, o)
}

// List handles GET /admin/offers.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to list offers")
		return
	}
	response.OK(c, list)
}

// Update handles PUT /admin/offers/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := offerID(c)
	if !ok {
		return
	}
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in, msg := req.input()
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	o, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err, "failed to update offer")
		return
	}
	response.OK(c, o)
}

// Delete handles DELETE /admin/offers/:id?reset_full_discount=true|false.
// Without the query parameter the offer's own flag applies.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := offerID(c)
	if !ok {
		return
	}
	var resetFull *bool
	if v, set := c.GetQuery("reset_full_discount"); set {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "invalid reset_full_discount")
			return
		}
		resetFull = &b
	}
	if err := h.svc.Delete(c.Request.Context(), id, resetFull); err != nil {
		h.fail(c, err, "failed to delete offer")
		return
	}
	response.NoContent(c)
}

// Jobs handles GET /admin/offers/:id/jobs.
func (h *Handler) Jobs(c *gin.Context) {
	id, ok := offerID(c)
	if !ok {
		return
	}
	jobs, err := h.svc.Jobs(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*models.ScheduledJob{}
	}
	response.OK(c, jobs)
}

func offerID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid offer id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, models.ErrOfferNotFound):
		response.NotFound(c, "offer not found")
	case errors.Is(err, ErrInvalidOffer), errors.Is(err, schedule.ErrInvalidScheduleWindow):
		response.BadRequestHint(c, err.Error(), errors.FlattenHints(err))
	case errors.Is(err, ErrSlugConflict), errors.Is(err, schedule.ErrDuplicatePendingJob):
		response.Conflict(c, err.Error())
	case errors.Is(err, schedule.ErrEngineNotReady):
		response.ServiceUnavailable(c, "scheduler is reconciling, retry shortly")
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c, msg)
	}
}

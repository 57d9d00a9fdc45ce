package schedule

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-commerce/backend/pkg/queue"
	"github.com/aura-commerce/backend/pkg/response"
)

// DeadLetterLister lists dead-lettered jobs. Implemented by *queue.Queue.
type DeadLetterLister interface {
	List(ctx context.Context, limit int) ([]queue.DeadLetter, error)
}

// Handler exposes scheduler operations to admins.
type Handler struct {
	engine *Engine
	dlq    DeadLetterLister
	logger *zap.Logger
}

// NewHandler creates a scheduler admin handler. dlq may be nil.
func NewHandler(engine *Engine, dlq DeadLetterLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, dlq: dlq, logger: logger}
}

// Status handles GET /admin/scheduler/status.
func (h *Handler) Status(c *gin.Context) {
	response.OK(c, gin.H{"ready": h.engine.Ready(), "armed": h.engine.Armed()})
}

// Sweep handles POST /admin/scheduler/sweep: fires overdue jobs without a live timer now.
func (h *Handler) Sweep(c *gin.Context) {
	if !h.engine.Ready() {
		response.ServiceUnavailable(c, "scheduler is reconciling")
		return
	}
	n, err := h.engine.Sweep(c.Request.Context())
	if err != nil {
		h.logger.Error("manual sweep failed", zap.Error(err))
		response.Internal(c, "sweep failed")
		return
	}
	response.OK(c, gin.H{"attempted": n})
}

// DeadLetters handles GET /admin/scheduler/dead-letters?limit=N.
func (h *Handler) DeadLetters(c *gin.Context) {
	if h.dlq == nil {
		response.ServiceUnavailable(c, "dead-letter queue not configured")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	list, err := h.dlq.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list dead letters", zap.Error(err))
		response.Internal(c, "failed to list dead letters")
		return
	}
	response.OK(c, list)
}

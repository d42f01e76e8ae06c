package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medisync/registry/internal/handler"
	"github.com/medisync/registry/internal/repository/sqlite"
)

type Handler struct {
	store *sqlite.Store
}

func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/healthz", h.HealthCheck)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, handler.NewErrorResponse("store unreachable"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": "healthy"}))
}

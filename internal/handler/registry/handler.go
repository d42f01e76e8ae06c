package registry

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"

	"github.com/medisync/registry/internal/handler"
	"github.com/medisync/registry/internal/model"
	"github.com/medisync/registry/internal/session"
	apperrors "github.com/medisync/registry/pkg/errors"
	"github.com/medisync/registry/pkg/logger"
)

const (
	viewCacheKey      = "view"
	viewCacheDuration = 30 * time.Second
	cleanupInterval   = 5 * time.Minute
)

// Handler exposes one session over HTTP. List responses are served from a
// short-lived cache flushed on every visible state change, so a burst of
// polling readers does not recompute the filtered view each time.
type Handler struct {
	session *session.Session
	cache   *gocache.Cache
	logger  *logger.Logger
}

func NewHandler(sess *session.Session, log *logger.Logger) *Handler {
	h := &Handler{
		session: sess,
		cache:   gocache.New(viewCacheDuration, cleanupInterval),
		logger:  log,
	}
	sess.SetOnChange(h.cache.Flush)
	return h
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.RegisterPatient)
		patients.GET("", h.ListPatients)
		patients.GET("/view", h.GetView)
		patients.PUT("/filter", h.SetFilter)
	}
}

func (h *Handler) RegisterPatient(c *gin.Context) {
	var req model.RegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	patients, err := h.session.Register(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(patients))
}

func (h *Handler) ListPatients(c *gin.Context) {
	if cached, ok := h.cache.Get(viewCacheKey); ok {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(cached))
		return
	}

	view := h.session.View()
	h.cache.SetDefault(viewCacheKey, view)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.session.View()))
}

type setFilterRequest struct {
	Search string `json:"search"`
}

func (h *Handler) SetFilter(c *gin.Context) {
	var req setFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	h.session.SetSearch(c.Request.Context(), req.Search)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.session.View()))
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if fields, ok := apperrors.Fields(err); ok {
		c.JSON(http.StatusBadRequest, handler.NewFieldErrorResponse(fields))
		return
	}

	status := http.StatusInternalServerError
	if apperrors.Code(err) == apperrors.ErrStoreUnavailable {
		status = http.StatusServiceUnavailable
	}
	h.logger.Error(err, "registration failed")
	c.JSON(status, handler.NewErrorResponse(apperrors.UserMessage(err)))
}

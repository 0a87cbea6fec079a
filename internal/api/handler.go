package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campus-admin/internal/entity"
	"campus-admin/internal/store"
	"campus-admin/internal/validate"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store  store.Store
	logger *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, logger *zap.Logger) *Handler {
	return &Handler{
		store:  s,
		logger: logger,
	}
}

// List handles GET /api/:type. Query parameters filter by parent link.
func (h *Handler) List(c *gin.Context) {
	t, ok := entityType(c)
	if !ok {
		return
	}
	filters := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			filters[k] = v[0]
		}
	}

	docs, err := h.store.List(c.Request.Context(), t, filters)
	if err != nil {
		h.fail(c, "fetch", t, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": docs})
}

// Get handles GET /api/:type/:id.
func (h *Handler) Get(c *gin.Context) {
	t, ok := entityType(c)
	if !ok {
		return
	}
	doc, err := h.store.Get(c.Request.Context(), t, c.Param("id"))
	if err != nil {
		h.fail(c, "fetch", t, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": doc})
}

// Create handles POST /api/:type.
func (h *Handler) Create(c *gin.Context) {
	t, ok := entityType(c)
	if !ok {
		return
	}
	var doc entity.Doc
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	created, err := h.store.Create(c.Request.Context(), t, doc)
	if err != nil {
		h.fail(c, "create", t, err)
		return
	}
	h.logger.Info("entity created", zap.String("type", string(t)), zap.String("id", created.ID()))
	c.JSON(http.StatusCreated, gin.H{"data": created})
}

// Update handles PATCH /api/:type/:id with a partial document.
func (h *Handler) Update(c *gin.Context) {
	t, ok := entityType(c)
	if !ok {
		return
	}
	var patch entity.Doc
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	updated, err := h.store.Update(c.Request.Context(), t, c.Param("id"), patch)
	if err != nil {
		h.fail(c, "update", t, err)
		return
	}
	h.logger.Info("entity updated", zap.String("type", string(t)), zap.String("id", updated.ID()))
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

// Delete handles DELETE /api/:type/:id.
func (h *Handler) Delete(c *gin.Context) {
	t, ok := entityType(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.store.Delete(c.Request.Context(), t, id); err != nil {
		h.fail(c, "delete", t, err)
		return
	}
	h.logger.Info("entity deleted", zap.String("type", string(t)), zap.String("id", id))
	c.Status(http.StatusNoContent)
}

func entityType(c *gin.Context) (entity.Type, bool) {
	t, err := entity.ParseType(c.Param("type"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Unknown entity type"})
		return "", false
	}
	return t, true
}

// fail maps store errors onto status codes. Unexpected errors are logged and
// reported with a generic message.
func (h *Handler) fail(c *gin.Context, verb string, t entity.Type, err error) {
	var verr *validate.Error
	var ferr *store.FilterError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": verr.UserMessage()})
	case errors.As(err, &ferr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ferr.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("store operation failed",
			zap.String("op", verb), zap.String("type", string(t)), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			gin.H{"error": fmt.Sprintf("Failed to %s %s", verb, strings.ToLower(t.Label()))})
	}
}

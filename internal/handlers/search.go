package handlers

import (
	"net/http"
	"strconv"

	"agrovoice/internal/retrieval"

	"github.com/labstack/echo/v4"
)

// SearchHandler exposes hybrid retrieval over HTTP.
type SearchHandler struct {
	engine *retrieval.Engine
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(engine *retrieval.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// Search runs a hybrid query: ?q= is the query text, ?k= the result count.
// Sub-source failures degrade the result rather than erroring, so this
// endpoint only rejects missing input.
func (h *SearchHandler) Search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "q is required"})
	}

	topK := 6
	if k := c.QueryParam("k"); k != "" {
		if parsed, err := strconv.Atoi(k); err == nil && parsed > 0 {
			topK = parsed
		}
	}

	result := h.engine.Query(c.Request().Context(), query, topK)
	return c.JSON(http.StatusOK, result)
}

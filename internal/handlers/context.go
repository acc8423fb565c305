package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// paginationParams parses page/limit from the query and clamps them to the
// same effective bounds the services apply, so response meta always reflects
// the paging actually used.
func paginationParams(c *gin.Context) (page, limit int) {
	page = parseIntQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit = parseIntQuery(c, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}

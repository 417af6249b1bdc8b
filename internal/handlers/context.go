package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leasehold/leasehold/internal/services"
	"github.com/leasehold/leasehold/pkg/response"
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

// parsePage reads page/per_page query parameters. Out-of-range values fall
// back to the service defaults.
func parsePage(c *gin.Context) services.ListPage {
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	return services.ListPage{Page: page, PerPage: perPage}
}

func pageMeta(page services.ListPage, total int64) *response.Meta {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PerPage < 1 {
		page.PerPage = 50
	}

	totalPages := int(total) / page.PerPage
	if int(total)%page.PerPage != 0 {
		totalPages++
	}

	return &response.Meta{
		Page:       page.Page,
		PerPage:    page.PerPage,
		Total:      int(total),
		TotalPages: totalPages,
	}
}

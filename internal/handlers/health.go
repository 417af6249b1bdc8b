package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/pkg/response"
)

// Health returns a status payload useful for readiness checks, including
// database connectivity.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		dbStatus := "ok"

		if sqlDB, err := db.DB(); err != nil {
			status, dbStatus = "degraded", "unavailable"
		} else if err := sqlDB.PingContext(requestContext(c)); err != nil {
			status, dbStatus = "degraded", "unavailable"
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		response.Success(c, code, gin.H{"status": status, "database": dbStatus})
	}
}

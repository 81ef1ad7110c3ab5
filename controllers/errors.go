package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"boardapp/models"
)

// respondError maps the failure taxonomy to HTTP statuses. Reason strings
// stay short and machine-readable; internals are never exposed.
func respondError(c *gin.Context, err error, reason string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrValidation):
		status = http.StatusUnprocessableEntity
	}
	if reason == "" {
		reason = err.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": reason})
}

// isDuplicate reports whether an insert failed on a uniqueness constraint.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

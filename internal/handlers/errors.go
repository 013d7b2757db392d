package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"storeops/internal/cascade"
	"storeops/internal/cleanup"
	"storeops/internal/lock"
	"storeops/internal/ratelimit"
)

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// StatusFor maps an error onto an HTTP status code.
func StatusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr), errors.Is(err, cascade.ErrEmptyStoreID):
		return http.StatusBadRequest
	case errors.Is(err, cleanup.ErrStoreNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, cleanup.ErrAlreadyDeleted), errors.Is(err, lock.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, ratelimit.ErrLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	c.JSON(status, gin.H{
		"error":      err.Error(),
		"statusCode": status,
	})
}

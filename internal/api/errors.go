package api

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/repository"
	"alcyxob/gym-booking/internal/service"
	"alcyxob/gym-booking/internal/storage"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps a service error onto an HTTP status and aborts.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound),
		errors.Is(err, service.ErrMemberNotFound),
		errors.Is(err, service.ErrAttendanceNotFound),
		errors.Is(err, repository.ErrNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProgramNotFound):
		abortWithError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAlreadyCheckedIn),
		errors.Is(err, service.ErrMemberMismatch),
		errors.Is(err, service.ErrUserAlreadyExists),
		errors.Is(err, repository.ErrDuplicate):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrTxConflict):
		// Contention on the session roster; the client may retry.
		c.Header("Retry-After", "1")
		abortWithError(c, http.StatusServiceUnavailable, "Session is busy, please retry")
	case errors.Is(err, storage.ErrStorageUnavailable):
		abortWithError(c, http.StatusServiceUnavailable, err.Error())
	default:
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// respondRejection reports a refused booking. Duplicates are conflicts,
// eligibility failures are forbidden.
func respondRejection(c *gin.Context, rej *service.Rejection) {
	status := http.StatusForbidden
	if rej.Code == domain.CodeDuplicateBooking {
		status = http.StatusConflict
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   rej.Reason,
		"code":    rej.Code,
		"reason":  rej.Reason,
	})
}

package apperr

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error is the single failure type handlers return. Code is a stable
// machine-checkable identifier; Message is for humans.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithStatus overrides the default HTTP status for this error.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

func InvalidInput(code, format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(code, format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Conflict(code, format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(code, format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusForbidden, Code: code, Message: fmt.Sprintf(format, args...)}
}

func PreconditionFailed(code, format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Storage(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "STORAGE_FAILURE", Message: "database error", Err: err}
}

// Respond writes the error as the standard JSON envelope. Unknown
// error values are reported as storage failures without leaking details.
func Respond(c *gin.Context, err error) {
	if appErr, ok := err.(*Error); ok {
		c.JSON(appErr.Status, gin.H{
			"success": false,
			"error":   appErr.Code,
			"message": appErr.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "STORAGE_FAILURE",
		"message": "database error",
	})
}

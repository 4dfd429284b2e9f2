package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/knowledge-registry/internal/domain"
)

// StatusFor maps registry error codes onto HTTP statuses. Unknown or
// uncoded errors are treated as internal.
func StatusFor(err error) int {
	switch types.CodeOf(err) {
	case types.CodeValidation:
		return http.StatusBadRequest
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeConflict, types.CodeInvalidTransition:
		return http.StatusConflict
	case types.CodeUnavailable, types.CodeRetryable:
		return http.StatusServiceUnavailable
	case types.CodeProcessor:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondDomainError renders a service error with its registry code and the
// human-readable message rather than the full op chain.
func RespondDomainError(c *gin.Context, err error) {
	code := string(types.CodeOf(err))
	if code == "" {
		code = string(types.CodeInternal)
	}
	msg := types.MessageOf(err)
	if msg == "" {
		msg = "unknown error"
	}
	c.JSON(StatusFor(err), ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

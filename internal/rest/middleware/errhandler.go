package middleware

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/logger"
	"github.com/packlane/packlane/internal/types"
)

const safeDetailsPrefix = "__json__:"

// ErrorResponse is the envelope every failed request returns
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler converts errors attached to the gin context into the
// standard error envelope. Hints are caller-facing; reportable details
// are merged in; everything else stays in the logs.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		status := ierr.HTTPStatusFromErr(err)
		resp := ErrorResponse{
			Error: ErrorDetail{
				Message: displayMessage(err),
				Details: reportableDetails(err),
			},
		}

		if status >= 500 {
			log.Errorw("request failed",
				"error", err,
				"status", status,
				"path", c.Request.URL.Path,
				"request_id", types.GetRequestID(c.Request.Context()),
			)
		}
		c.JSON(status, resp)
	}
}

// displayMessage prefers the hint chain over the raw error text
func displayMessage(err error) string {
	hints := errors.GetAllHints(err)
	if len(hints) > 0 {
		return strings.Join(hints, ". ")
	}
	return err.Error()
}

// reportableDetails merges every structured detail payload attached
// through WithReportableDetails
func reportableDetails(err error) map[string]any {
	merged := make(map[string]any)
	for _, payload := range errors.GetAllSafeDetails(err) {
		for _, detail := range payload.SafeDetails {
			if !strings.HasPrefix(detail, safeDetailsPrefix) {
				continue
			}
			var details map[string]any
			if jsonErr := json.Unmarshal([]byte(strings.TrimPrefix(detail, safeDetailsPrefix)), &details); jsonErr != nil {
				continue
			}
			for k, v := range details {
				merged[k] = v
			}
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

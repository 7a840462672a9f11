package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
)

const genericServerMessage = "internal server error"

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// RespondError maps err through the apierr taxonomy. In release mode 5xx
// messages are replaced with a generic one; detail stays in the logs.
func RespondError(c *gin.Context, err error) {
	status := apierr.StatusOf(err)
	code := string(apierr.KindInternal)
	msg := "unknown error"
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Code != "" {
		code = ae.Code
	}
	if err != nil {
		msg = err.Error()
		_ = c.Error(err)
	}
	if status >= http.StatusInternalServerError && gin.Mode() == gin.ReleaseMode {
		msg = genericServerMessage
	}
	c.AbortWithStatusJSON(status, ErrorBody{
		Error:      code,
		Message:    msg,
		StatusCode: status,
	})
}

// RespondBadRequest reports a malformed request.
func RespondBadRequest(c *gin.Context, code string, err error) {
	RespondError(c, apierr.Of(apierr.KindBadRequest, code, err))
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondStatus(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

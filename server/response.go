package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/server/middleware"
)

// DataResponse wraps every successful admin API body.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError answers with the AppError's status, or 500 for any
// other error, tagging the body with the request id.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.HTTPStatus == 0 {
		appErr = errors.Internal(err)
	}
	_ = c.Error(err)
	resp := appErr.ToResponse()
	resp.Error.RequestID = middleware.GetRequestID(c)
	c.JSON(appErr.HTTPStatus, resp)
}

func RespondOK(c *gin.Context, data any) { c.JSON(http.StatusOK, DataResponse{Data: data}) }
func RespondAccepted(c *gin.Context, data any) { c.JSON(http.StatusAccepted, DataResponse{Data: data}) }

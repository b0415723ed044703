package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vrrprepo/rprepo/pkg/rprepo/logger"
)

// Response is the envelope shared by every endpoint
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the public part of a failure
type ErrorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// OK writes a 200 success envelope
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// Created writes a 201 success envelope
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// Fail writes the failure envelope for err and aborts the handler chain.
// Errors that are not *Error, and query errors, are logged and hidden behind
// a generic internal server error.
func Fail(c *gin.Context, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = QueryError("unexpected error", err)
	}

	if apiErr.Status >= http.StatusInternalServerError {
		logger.FromContext(c).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("op", apiErr.Message),
			zap.Error(apiErr.Unwrap()),
		)
		c.AbortWithStatusJSON(apiErr.Status, Response{
			Success: false,
			Error:   &ErrorBody{Name: "InternalServerError", Message: "Internal server error"},
		})
		return
	}

	c.AbortWithStatusJSON(apiErr.Status, Response{
		Success: false,
		Error:   &ErrorBody{Name: apiErr.Name, Message: apiErr.Message},
	})
}

// BindError converts a gin binding failure into a ValidationError
func BindError(err error) *Error {
	return &Error{Name: NameValidation, Message: err.Error(), Status: http.StatusBadRequest}
}

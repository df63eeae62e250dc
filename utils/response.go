package utils

import (
	"github.com/gin-gonic/gin"
)

// Envelope is the body of every JSON response. Data is set on success and
// Error on failure.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Envelope{Status: status, Message: message, Data: data})
}

// JSONError sends a structured error response
func JSONError(c *gin.Context, status int, err error, message string) {
	c.JSON(status, errorEnvelope(status, err, message))
}

// JSONAbort sends a structured error response and stops the handler chain
func JSONAbort(c *gin.Context, status int, err error, message string) {
	c.AbortWithStatusJSON(status, errorEnvelope(status, err, message))
}

func errorEnvelope(status int, err error, message string) Envelope {
	env := Envelope{Status: status, Message: message}
	if err != nil {
		env.Error = err.Error()
	}
	return env
}

package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/flarexio/qarelay"
)

// webhookRequest is the raw inbound payload. The user id arrives as any
// JSON scalar and is coerced to a string.
type webhookRequest struct {
	Message  string `json:"message"`
	UserID   any    `json:"user_id"`
	UserName string `json:"user_name"`
}

func coerceUserID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(id)
	default:
		return ""
	}
}

func AskHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req webhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			c.Error(err)
			c.Abort()
			return
		}

		if strings.TrimSpace(req.Message) == "" {
			err := errors.New("message is required")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			c.Error(err)
			c.Abort()
			return
		}

		askReq := qarelay.AskRequest{
			UserID:   coerceUserID(req.UserID),
			UserName: req.UserName,
			Message:  req.Message,
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, askReq)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, qarelay.ErrEmptyQuestion) {
				status = http.StatusBadRequest
			}

			c.JSON(status, gin.H{"error": err.Error()})
			c.Error(err)
			c.Abort()
			return
		}

		result, ok := resp.(qarelay.AskResponse)
		if !ok {
			err := errors.New("invalid response type")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, gin.H{"reply": result.Reply.Text})
	}
}

func ReloadHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		resp, err := endpoint(ctx, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func CountHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		resp, err := endpoint(ctx, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

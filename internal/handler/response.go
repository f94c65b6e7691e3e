package handler

import (
	"errors"
	"net/http"

	"nexchat/internal/media"
	"nexchat/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// respond writes the uniform API envelope.
func respond(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{
		"status":  status,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// respondError maps the service error taxonomy to HTTP codes. Anything
// outside the taxonomy is an internal failure and stays opaque.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidMessage), errors.Is(err, service.ErrUnsupportedMedia), errors.Is(err, media.ErrUploadFailed):
		respond(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrForbidden):
		respond(c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		respond(c, http.StatusNotFound, err.Error(), nil)
	default:
		respond(c, http.StatusInternalServerError, "Internal server error", nil)
	}
}

// userIDKey is where the auth middleware leaves the caller's identity.
const userIDKey = "auth_user_id"

// RequireUser extracts the authenticated user id. Session validation is
// the gateway's job; this process only trusts the forwarded identity
// header.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			respond(c, http.StatusUnauthorized, "Missing or invalid user identity", nil)
			c.Abort()
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

func currentUser(c *gin.Context) primitive.ObjectID {
	return c.MustGet(userIDKey).(primitive.ObjectID)
}

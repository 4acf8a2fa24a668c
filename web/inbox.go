package web

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lattice-fed/lattice/activitypub"
)

// HandleInbox accepts an activity POSTed to the shared or a per-actor
// inbox and runs it through the federation gateway. This is the only
// place internal errors become HTTP statuses: 400 for malformed
// payloads, 401 for trust failures, 502 when the sender's server cannot
// be reached, 200 for everything processed, deduplicated or tolerated.
func HandleInbox(c *gin.Context, fed *activitypub.Federator) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	defer c.Request.Body.Close()

	err = fed.ReceiveActivity(c.Request.Context(), c.Request, body)
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	switch {
	case errors.Is(err, activitypub.ErrMalformed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed activity"})
	case errors.Is(err, activitypub.ErrInvalidActor),
		errors.Is(err, activitypub.ErrForbiddenDomain),
		errors.Is(err, activitypub.ErrMissingSignature),
		errors.Is(err, activitypub.ErrUnknownKey),
		errors.Is(err, activitypub.ErrSignatureMismatch),
		errors.Is(err, activitypub.ErrOriginMismatch):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "verification failed"})
	case errors.Is(err, activitypub.ErrFetchFailed),
		errors.Is(err, activitypub.ErrMalformedActor):
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not resolve actor"})
	default:
		log.Printf("Inbox: internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

package web

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lattice-fed/lattice/db"
	"github.com/lattice-fed/lattice/domain"
	"github.com/lattice-fed/lattice/util"
)

const activityJSONType = "application/activity+json"

// HandleActor serves the AS2 actor document for a locally hosted Person
// or Group, giving remote servers the public key and inbox URLs they
// need to verify and deliver.
func HandleActor(c *gin.Context, database *db.DB, conf *util.AppConfig, kind string) {
	name := c.Param("name")

	actor, err := database.ReadLocalActor(name, kind)
	if err != nil || actor == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}
	if actor.Deleted {
		c.JSON(http.StatusGone, gin.H{"detail": "Gone"})
		return
	}

	doc := gin.H{
		"@context":          "https://www.w3.org/ns/activitystreams",
		"id":                actor.ActorURI,
		"type":              actor.Kind,
		"preferredUsername": actor.Username,
		"name":              actor.DisplayName,
		"summary":           actor.Summary,
		"inbox":             actor.InboxURI,
		"outbox":            actor.OutboxURI,
		"endpoints": gin.H{
			"sharedInbox": fmt.Sprintf("https://%s/inbox", conf.Conf.Domain),
		},
		"publicKey": gin.H{
			"id":           actor.KeyId(),
			"owner":        actor.ActorURI,
			"publicKeyPem": actor.PublicKeyPem,
		},
	}

	c.Header("Content-Type", activityJSONType)
	c.JSON(http.StatusOK, doc)
}

// HandlePerson serves GET /u/:name.
func HandlePerson(c *gin.Context, database *db.DB, conf *util.AppConfig) {
	HandleActor(c, database, conf, domain.ActorPerson)
}

// HandleCommunity serves GET /c/:name.
func HandleCommunity(c *gin.Context, database *db.DB, conf *util.AppConfig) {
	HandleActor(c, database, conf, domain.ActorGroup)
}

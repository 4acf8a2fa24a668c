package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lattice-fed/lattice/db"
	"github.com/lattice-fed/lattice/domain"
	"github.com/lattice-fed/lattice/util"
)

// HandleWebfinger answers acct: lookups for local users and communities,
// so remote servers can discover actor URIs from name@domain handles.
// Community handles use the conventional ! prefix but plain acct: form
// works for both.
func HandleWebfinger(c *gin.Context, database *db.DB, conf *util.AppConfig) {
	resource := c.Query("resource")
	name, host, ok := parseAcct(resource)
	if !ok || !strings.EqualFold(host, conf.Conf.Domain) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	actor, err := database.ReadLocalActor(name, domain.ActorPerson)
	if err != nil || actor == nil {
		actor, err = database.ReadLocalActor(name, domain.ActorGroup)
	}
	if err != nil || actor == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subject": fmt.Sprintf("acct:%s@%s", actor.Username, conf.Conf.Domain),
		"links": []gin.H{
			{
				"rel":  "self",
				"type": activityJSONType,
				"href": actor.ActorURI,
			},
		},
	})
}

// parseAcct splits "acct:name@host" (optionally with a leading ! on the
// name for communities) into its parts.
func parseAcct(resource string) (name, host string, ok bool) {
	acct, found := strings.CutPrefix(resource, "acct:")
	if !found {
		return "", "", false
	}
	acct = strings.TrimPrefix(acct, "!")
	acct = strings.TrimPrefix(acct, "@")
	parts := strings.SplitN(acct, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

package web

import (
	"fmt"
	"log"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/lattice-fed/lattice/activitypub"
	"github.com/lattice-fed/lattice/db"
	"github.com/lattice-fed/lattice/util"
	"golang.org/x/time/rate"
)

const maxInboxBodyBytes = 1 << 20 // 1 MiB

// Router wires the federation HTTP surface and blocks serving it.
func Router(conf *util.AppConfig, database *db.DB, fed *activitypub.Federator, hub *Hub) error {
	log.Printf("Starting federation server on %s:%d", conf.Conf.Host, conf.Conf.HttpPort)
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	inbox := func(c *gin.Context) {
		HandleInbox(c, fed)
	}

	// Shared inbox plus per-actor inboxes; all feed the same gateway
	g.POST("/inbox", MaxBytesMiddleware(maxInboxBodyBytes), inbox)
	g.POST("/u/:name/inbox", MaxBytesMiddleware(maxInboxBodyBytes), inbox)
	g.POST("/c/:name/inbox", MaxBytesMiddleware(maxInboxBodyBytes), inbox)

	g.GET("/u/:name", func(c *gin.Context) {
		HandlePerson(c, database, conf)
	})

	g.GET("/c/:name", func(c *gin.Context) {
		HandleCommunity(c, database, conf)
	})

	g.GET("/.well-known/webfinger", func(c *gin.Context) {
		HandleWebfinger(c, database, conf)
	})

	g.GET("/ws", func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	})

	return g.Run(fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort))
}

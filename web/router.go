package web

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/kibouhq/kibou/activitypub"
	"github.com/kibouhq/kibou/util"
)

// Router assembles the public HTTP surface: actor profiles and
// collections, activity/object permalinks, the shared and per-actor
// inboxes, WebFinger, and (if enabled) NodeInfo.
func Router(db activitypub.Database, resolver *activitypub.Resolver, inbox *activitypub.InboxProcessor, conf *util.AppConfig) *gin.Engine {
	gin.DefaultWriter = util.GetLogWriter()
	gin.DefaultErrorWriter = util.GetLogWriter()

	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	apLimiter := NewRateLimiter(rate.Limit(5), 10)
	maxBody := MaxBytesMiddleware(1 << 20)

	g.GET("/actors/:username", func(c *gin.Context) {
		actor, err := db.ActorByPreferredUsernameLocal(c.Param("username"))
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Header("Content-Type", "application/activity+json; charset=utf-8")
		c.String(http.StatusOK, RenderActor(actor))
	})

	g.GET("/actors/:username/followers", func(c *gin.Context) {
		actor, err := db.ActorByPreferredUsernameLocal(c.Param("username"))
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		collectionURI := actor.URI + "/followers"
		c.Header("Content-Type", "application/activity+json; charset=utf-8")
		if pageParam := c.Query("page"); pageParam != "" {
			page := parsePage(pageParam)
			c.JSON(http.StatusOK, RenderOrderedCollectionPage(collectionURI, page, FollowerURIs(actor, page), len(actor.Followers)))
			return
		}
		c.JSON(http.StatusOK, RenderOrderedCollection(collectionURI, len(actor.Followers)))
	})

	g.GET("/actors/:username/following", func(c *gin.Context) {
		actor, err := db.ActorByPreferredUsernameLocal(c.Param("username"))
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		collectionURI := actor.URI + "/following"
		c.Header("Content-Type", "application/activity+json; charset=utf-8")

		pageParam := c.Query("page")
		page := 1
		if pageParam != "" {
			page = parsePage(pageParam)
		}
		uris, total, err := FolloweeURIs(db, actor, page)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		if pageParam != "" {
			c.JSON(http.StatusOK, RenderOrderedCollectionPage(collectionURI, page, uris, total))
			return
		}
		c.JSON(http.StatusOK, RenderOrderedCollection(collectionURI, total))
	})

	g.GET("/activities/:id", func(c *gin.Context) {
		activityID := conf.BaseURL() + "/activities/" + c.Param("id")
		a, err := db.ActivityByActivityID(activityID)
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, "application/activity+json; charset=utf-8", a.Data)
	})

	g.GET("/objects/:id", func(c *gin.Context) {
		objectID := conf.BaseURL() + "/objects/" + c.Param("id")
		o, err := db.ObjectByID(objectID)
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, "application/activity+json; charset=utf-8", o.Data)
	})

	g.POST("/inbox", RateLimitMiddleware(apLimiter), maxBody, func(c *gin.Context) {
		handleInbox(c, resolver, inbox)
	})

	g.POST("/actors/:username/inbox", RateLimitMiddleware(apLimiter), maxBody, func(c *gin.Context) {
		handleInbox(c, resolver, inbox)
	})

	g.GET("/.well-known/webfinger", func(c *gin.Context) {
		c.Header("Content-Type", "application/jrd+json; charset=utf-8")
		resource := c.Query("resource")
		doc, err := activitypub.ResolveWebFinger(db, resource)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	if conf.Conf.NodeInfo.Enabled {
		g.GET("/.well-known/nodeinfo", func(c *gin.Context) {
			c.Header("Content-Type", "application/json; charset=utf-8")
			c.String(http.StatusOK, BuildWellKnownNodeInfo(conf))
		})
		g.GET("/nodeinfo/2.0.json", func(c *gin.Context) {
			c.Header("Content-Type", "application/json; charset=utf-8")
			c.String(http.StatusOK, MarshalNodeInfo20(BuildNodeInfo20(db, conf)))
		})
	}

	return g
}

// handleInbox verifies the request signature (if any resolves), then hands
// the raw body to the inbox processor. Per the design decision tightening
// source behavior, an activity that fails to resolve a verified signer is
// still forwarded with an empty actor URI so ValidateActivity's
// no-verified-signature rejection is the single place that decision lives.
func handleInbox(c *gin.Context, resolver *activitypub.Resolver, inbox *activitypub.InboxProcessor) {
	if ct := c.GetHeader("Content-Type"); ct != "" && !strings.Contains(ct, "application/activity+json") {
		c.Status(http.StatusUnsupportedMediaType)
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	actorURI, err := activitypub.ParseAndVerify(c.Request, resolver)
	if err != nil {
		actorURI = ""
	}

	if err := inbox.Process(body, actorURI); err != nil {
		log.Printf("inbox: %v", err)
		c.Status(http.StatusUnprocessableEntity)
		return
	}
	c.Status(http.StatusAccepted)
}

func parsePage(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

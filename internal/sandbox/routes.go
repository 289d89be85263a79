package sandbox

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/survos/lingua/internal/wire"
)

// Handler returns the gin engine serving the wire contract.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST"},
		AllowHeaders:    []string{"Content-Type", "Authorization", "X-Api-Key"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(s.auth())

	r.POST(wire.RouteBatch, s.handleBatch)
	r.POST(wire.RoutePull, s.handlePull)
	r.GET(wire.RouteJob+"/:file", s.handleJob)
	r.GET(wire.RouteSource+"/:file", s.handleSource)
	return r
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" {
			c.Next()
			return
		}
		key := c.GetHeader("X-Api-Key")
		if key == "" {
			key = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleBatch(c *gin.Context) {
	var req wire.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid_request", "message": err.Error()})
		return
	}
	if req.Source == "" || len(req.Target) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "error", "error": "source and target are required"})
		return
	}

	res := s.submit(req)
	s.logger.Info("sandbox batch",
		"source", req.Source, "targets", strings.Join(req.Target, ","),
		"texts", len(req.Texts), "queued", res.queued, "transport", req.Transport)

	missing := res.missing
	if missing == nil {
		missing = []string{}
	}

	if res.jobID != "" {
		// Queued batches answer inside a response envelope.
		c.JSON(http.StatusAccepted, gin.H{
			"status": "queued",
			"jobId":  res.jobID,
			"response": gin.H{
				"queued":  res.queued,
				"missing": missing,
				"items":   itemsOrEmpty(res.items),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"sources": res.accepted,
		"missing": missing,
		"items":   itemsOrEmpty(res.items),
	})
}

func itemsOrEmpty(items []wire.TranslationItem) []wire.TranslationItem {
	if items == nil {
		return []wire.TranslationItem{}
	}
	return items
}

func (s *Server) handlePull(c *gin.Context) {
	var req wire.PullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid_request"})
		return
	}
	keyList := req.Keys
	if len(keyList) == 0 {
		keyList = req.Hashes
	}
	c.JSON(http.StatusOK, gin.H{"data": s.pull(keyList, c.Query("locale"))})
}

func (s *Server) handleJob(c *gin.Context) {
	id := strings.TrimSuffix(c.Param("file"), ".json")
	st, ok := s.jobStatus(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"jobId": id, "state": wire.JobUnknown, "message": "job not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleSource(c *gin.Context) {
	key := strings.TrimSuffix(c.Param("file"), ".json")
	src, ok := s.source(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "source not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": src})
}

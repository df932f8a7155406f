package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"perpetcal/internal/ics"
	appLog "perpetcal/internal/log"
	"perpetcal/internal/model"
)

// presetView is the public description of a preset. The feed URL is
// redacted since private calendar links embed their secret.
type presetView struct {
	Name  string `json:"name"`
	Feed  string `json:"feed"`
	TZID  string `json:"tzid"`
	DTFmt string `json:"dtfmt"`
	Sort  bool   `json:"sort"`
	Limit uint   `json:"limit"`
}

func (s *Server) handleConvert(c *gin.Context) {
	var req model.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.convertFailed(c, "", fmt.Errorf("invalid request body: %w", err))
		return
	}
	s.run(c, req)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListPresets(c *gin.Context) {
	views := make([]presetView, 0, len(s.cfg.Presets))
	for _, p := range s.cfg.Presets {
		views = append(views, presetView{
			Name:  p.Name,
			Feed:  ics.RedactURL(p.Feed),
			TZID:  p.TZID,
			DTFmt: p.DTFmt,
			Sort:  p.Sort,
			Limit: p.Limit,
		})
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleRunPreset(c *gin.Context) {
	name := c.Param("name")
	p, ok := s.cfg.Preset(name)
	if !ok {
		c.String(http.StatusNotFound, "Unknown preset: %s", name)
		return
	}
	s.run(c, p.Request)
}

// run executes req and writes either the JSON projection or a plain-text
// error: 400 for pipeline failures, 500 when the result cannot be encoded.
func (s *Server) run(c *gin.Context, req model.Request) {
	items, err := s.runner.Run(c.Request.Context(), req)
	if err != nil {
		s.convertFailed(c, req.Feed, err)
		return
	}

	body, err := s.encode(items)
	if err != nil {
		_ = c.Error(err)
		appLog.Error("encode response failed", err, "request_id", c.GetString("request_id"))
		c.String(http.StatusInternalServerError, "Failed to encode JSON, reason: %v", err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (s *Server) convertFailed(c *gin.Context, feed string, err error) {
	_ = c.Error(err)
	appLog.Warn("conversion failed",
		"err", err,
		"url", ics.RedactURL(feed),
		"request_id", c.GetString("request_id"),
	)
	c.String(http.StatusBadRequest, "Failed to convert, reason: %v", err)
}

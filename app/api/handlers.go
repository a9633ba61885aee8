package api

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vincehartono/pulsefeed/app/cfg"
	"github.com/vincehartono/pulsefeed/app/pipeline"
)

type Handler struct {
	outputPath string
	feedTitle  string
	report     *pipeline.Report
	ranAt      time.Time
}

func NewHandler(outputPath, feedTitle string, report *pipeline.Report, ranAt time.Time) *Handler {
	return &Handler{
		outputPath: outputPath,
		feedTitle:  feedTitle,
		report:     report,
		ranAt:      ranAt,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	data, err := os.ReadFile(h.outputPath)
	if err != nil {
		slog.Error("Failed to read generated document", "path", h.outputPath, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", data)
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   cfg.Get().Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{
		"feed":   h.feedTitle,
		"ran_at": h.ranAt.UTC().Format(time.RFC3339),
	}

	if h.report != nil {
		sourceErrors := make(map[string]string, len(h.report.SourceErrors))
		for source, err := range h.report.SourceErrors {
			sourceErrors[source] = err.Error()
		}

		stats["stage"] = string(h.report.Stage)
		stats["fetched"] = h.report.Fetched
		stats["dropped"] = h.report.Dropped
		stats["filtered"] = h.report.Filtered
		stats["duplicates"] = h.report.Duplicates
		stats["enriched"] = h.report.Enriched
		stats["emitted"] = h.report.Emitted
		stats["duration"] = h.report.Duration.String()
		stats["source_errors"] = sourceErrors
	}

	c.JSON(http.StatusOK, stats)
}

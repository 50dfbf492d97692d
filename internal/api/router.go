// Package api exposes a running pool and its scaling controller over
// HTTP, replacing the bare http.ServeMux status handler of the original
// orchestrator with a gin router.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jannes-thesis/scaling-adapter/internal/pool"
	"github.com/jannes-thesis/scaling-adapter/internal/scaling"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Variant     string `json:"variant"`
	WorkerCount int    `json:"worker_count"`
}

// HistoryEntry is one row of GET /history.
type HistoryEntry struct {
	SpanStart         time.Time `json:"span_start"`
	SpanEnd           time.Time `json:"span_end"`
	MeanScaleMetric   float64   `json:"mean_scale_metric"`
	StddevScaleMetric float64   `json:"stddev_scale_metric"`
	Count             int       `json:"count"`
}

// NewRouter builds a gin engine serving /status and /history for p.
// controller may be nil for the fixed/watermark variants; /history then
// always returns an empty list.
func NewRouter(variant string, p pool.Pool, controller *scaling.Controller) *gin.Engine {
	r := gin.Default()

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, StatusResponse{
			Variant:     variant,
			WorkerCount: p.Size(),
		})
	})

	r.GET("/history", func(c *gin.Context) {
		if controller == nil {
			c.JSON(http.StatusOK, []HistoryEntry{})
			return
		}
		avg, ok := controller.GetLatestAverage()
		if !ok {
			c.JSON(http.StatusOK, []HistoryEntry{})
			return
		}
		c.JSON(http.StatusOK, []HistoryEntry{{
			SpanStart:         avg.SpanStart,
			SpanEnd:           avg.SpanEnd,
			MeanScaleMetric:   avg.MeanScaleMetric,
			StddevScaleMetric: avg.StddevScaleMetric,
			Count:             avg.Count,
		}})
	})

	return r
}

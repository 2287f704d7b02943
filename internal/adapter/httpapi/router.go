// Package httpapi exposes the job manager over an admin HTTP API.
package httpapi

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobkit/internal/jobs"
)

// JobView is the JSON representation of a tracked future.
type JobView struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	JobID int64    `json:"job_id"`
	State string   `json:"state"`
	Mode  string   `json:"mode"`
	Hints []string `json:"hints,omitempty"`
}

// Handler serves admin endpoints.
type Handler struct {
	m        *jobs.Manager
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

// NewRouter builds a gin engine with admin routes. gatherer may be nil, in
// which case /metrics is not mounted.
func NewRouter(m *jobs.Manager, gatherer prometheus.Gatherer, log *slog.Logger) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{m: m, gatherer: gatherer, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests)
	r.GET("/healthz", h.health)
	r.GET("/jobs", h.list)
	r.POST("/jobs/:id/cancel", h.cancel)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

func (h *Handler) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.log.Debug("admin request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.FullPath()),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", time.Since(start)),
	)
}

func (h *Handler) health(c *gin.Context) {
	if h.m.IsShutdown() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutdown"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) list(c *gin.Context) {
	name := c.Query("name")
	hint := c.Query("hint")

	views := make([]JobView, 0)
	h.m.Visit(func(f jobs.Handle) bool {
		in := f.Input()
		if name != "" && in.Name() != name {
			return true
		}
		if hint != "" && !in.HasExecutionHint(hint) {
			return true
		}
		views = append(views, JobView{
			ID:    f.ID().String(),
			Name:  in.Name(),
			JobID: in.ID(),
			State: f.State().String(),
			Mode:  f.Mode().String(),
			Hints: in.ExecutionHints(),
		})
		return true
	})
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	c.JSON(http.StatusOK, gin.H{"jobs": views})
}

func (h *Handler) cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	force := false
	if v := c.Query("force"); v != "" {
		force, err = strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid force flag"})
			return
		}
	}

	f, ok := h.m.Lookup(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	cancelled := f.Cancel(force)
	h.log.Info("job cancel requested",
		slog.String("future_id", id.String()),
		slog.String("job", f.Input().Name()),
		slog.Bool("force", force),
		slog.Bool("cancelled", cancelled),
	)
	c.JSON(http.StatusOK, gin.H{"id": id.String(), "cancelled": cancelled})
}

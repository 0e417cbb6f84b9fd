package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vigil-labs/vigilctl/internal/controller"
	"github.com/vigil-labs/vigilctl/internal/metrics"
)

// Lifecycle is the slice of the controller the HTTP layer needs.
type Lifecycle interface {
	Start(opts controller.StartOptions) controller.Result
	Stop() controller.Result
	SetTelegramEnabled(target bool) controller.Result
	Status() controller.Snapshot
}

// Router provides embeddable HTTP handlers for the agent lifecycle.
// Endpoints:
//
//	POST {basePath}/start     body: StartOptions JSON (optional)
//	POST {basePath}/stop
//	POST {basePath}/telegram  body: {"enabled": bool}
//	GET  {basePath}/status
//	GET  {basePath}/metrics
//
// Every lifecycle endpoint answers 200 with a Result body; callers inspect
// the ok field. Only malformed requests answer 400.
type Router struct {
	ctl      Lifecycle
	basePath string
}

// NewRouter constructs a Router with a configurable basePath.
// Example basePath: "/vigil" results in /vigil/start, /vigil/stop, ...
func NewRouter(ctl Lifecycle, basePath string) *Router {
	return &Router{ctl: ctl, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/telegram", r.handleTelegram)
	group.GET("/status", r.handleStatus)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, ctl Lifecycle) (*http.Server, error) {
	r := NewRouter(ctl, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second, // start/toggle may sit behind a health gate
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type telegramReq struct {
	Enabled *bool `json:"enabled"`
}

func (r *Router) handleStart(c *gin.Context) {
	var opts controller.StartOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}
	writeJSON(c, http.StatusOK, r.ctl.Start(opts))
}

func (r *Router) handleStop(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.ctl.Stop())
}

func (r *Router) handleTelegram(c *gin.Context) {
	var req telegramReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Enabled == nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "enabled field required"})
		return
	}
	writeJSON(c, http.StatusOK, r.ctl.SetTelegramEnabled(*req.Enabled))
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.ctl.Status())
}

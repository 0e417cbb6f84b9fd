package vigilctl

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vigil-labs/vigilctl/internal/agentcfg"
	"github.com/vigil-labs/vigilctl/internal/controller"
	"github.com/vigil-labs/vigilctl/internal/history"
	"github.com/vigil-labs/vigilctl/internal/history/factory"
	"github.com/vigil-labs/vigilctl/internal/logger"
	"github.com/vigil-labs/vigilctl/internal/metrics"
	iapi "github.com/vigil-labs/vigilctl/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = controller.Config

type StartOptions = controller.StartOptions

type Result = controller.Result

type Snapshot = controller.Snapshot

type Outcome = controller.Outcome

const (
	OutcomeApplied    = controller.OutcomeApplied
	OutcomeUnchanged  = controller.OutcomeUnchanged
	OutcomeRolledBack = controller.OutcomeRolledBack
	OutcomeFailed     = controller.OutcomeFailed
)

type AgentDocument = agentcfg.Document

type CaptureConfig = logger.CaptureConfig

type HistorySink = history.Sink

// Supervisor is a thin facade over the internal lifecycle controller.
// It provides a stable public API for embedding.
type Supervisor struct{ inner *controller.Controller }

// New creates a Supervisor for one agent process and starts its operation
// queue. Release it with Shutdown.
func New(cfg Config) *Supervisor {
	return &Supervisor{inner: controller.New(cfg)}
}

func (s *Supervisor) Start(opts StartOptions) Result { return s.inner.Start(opts) }
func (s *Supervisor) Stop() Result                   { return s.inner.Stop() }
func (s *Supervisor) Status() Snapshot               { return s.inner.Status() }
func (s *Supervisor) Shutdown()                      { s.inner.Shutdown() }

func (s *Supervisor) SetTelegramEnabled(target bool) Result {
	return s.inner.SetTelegramEnabled(target)
}

// Handler returns an http.Handler exposing the lifecycle API for mounting in
// any server or mux.
func (s *Supervisor) Handler(basePath string) http.Handler {
	return iapi.NewRouter(s.inner, basePath).Handler()
}

// NewHTTPServer starts an HTTP server exposing the lifecycle API.
func NewHTTPServer(addr, basePath string, s *Supervisor) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, s.inner)
}

// NewHistorySink builds a lifecycle event sink from a DSN
// (sqlite path, postgres:// or clickhouse://).
func NewHistorySink(dsn string) (HistorySink, error) {
	return factory.NewSinkFromDSN(dsn)
}

// DefaultAgentConfig returns the agent configuration document with all
// defaults applied.
func DefaultAgentConfig() AgentDocument { return agentcfg.Default() }

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

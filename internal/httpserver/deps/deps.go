package deps

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/switchboard/internal/clash"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
	"github.com/MrSnakeDoc/switchboard/internal/probe"
	"github.com/MrSnakeDoc/switchboard/internal/sources/sites"
	"github.com/MrSnakeDoc/switchboard/internal/telemetry"
	"github.com/MrSnakeDoc/switchboard/internal/topology"
)

// Daemon is the part of the controller client the API calls directly.
type Daemon interface {
	SelectProxy(ctx context.Context, group, name string) error
	Configs(ctx context.Context) (clash.Configs, error)
	PatchConfigs(ctx context.Context, patch clash.ConfigPatch) error
	Connections(ctx context.Context) (clash.ConnectionsResponse, error)
	CloseConnection(ctx context.Context, id string) error
	Rules(ctx context.Context) ([]clash.Rule, error)
	Version(ctx context.Context) (clash.VersionInfo, error)
}

// Reconciler is the reconciliation loop as seen by the API.
type Reconciler interface {
	Trigger() bool
	Ready() error
}

type Deps struct {
	Logger          logger.Logger
	StartTime       time.Time
	Version         string
	Commit          string
	BuildDate       string
	GoVersion       string
	AllowedHosts    []string                   // Host headers allowed to reach the API
	AllowedCIDRS    []string                   // IPs allowed to reach the API
	TrustProxy      bool                       // true if running behind a trusted reverse proxy
	ProbeRatePerMin int                        // per-client refill on probe routes
	ProbeBurst      int                        // per-client burst on probe routes
	ProbeTimeout    time.Duration              // default timeout for site tests
	Store           *topology.Store            // proxy graph
	Prober          *probe.Scheduler           // latency probes
	Reconciler      Reconciler                 // topology refresh
	Daemon          Daemon                     // controller client
	Logs            *telemetry.LogIngestor     // daemon log history
	Samples         *telemetry.MetricsIngestor // traffic + memory history
	Sites           []sites.Site               // default site test list
	Metrics         http.Handler               // nil disables /metrics
	RedisClient     *redis.Client              // nil when persistence is disabled
}

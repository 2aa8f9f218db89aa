// navserver hosts a crowd.Simulator behind a fixed-rate tick loop. Clients
// subscribe over websocket for per-tick agent state and queue spawn,
// destination, and obstacle commands that apply between ticks. Prometheus
// metrics are served on /metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"math"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"crowdnav/config"
	"crowdnav/crowd"
	"crowdnav/geom"
	"crowdnav/pathfind"
	"crowdnav/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to YAML tuning file")
	addr := flag.String("addr", "", "listen address override")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	registry := prometheus.NewRegistry()
	metrics := telemetry.New("crowdnav", registry)

	sim := crowd.New(crowd.Config{
		WorldWidth:        cfg.World.Width,
		WorldHeight:       cfg.World.Height,
		FieldCellSize:     cfg.Field.CellSize,
		MaxAgents:         cfg.Crowd.MaxAgents,
		PartitionCellSize: cfg.Crowd.PartitionCellSize,
		FlowWeight:        cfg.Crowd.FlowWeight,
		SeparationWeight:  cfg.Crowd.SeparationWeight,
		MaxNeighbors:      cfg.Crowd.MaxNeighbors,
		Smoothing:         cfg.Crowd.Smoothing,
	}, logger, metrics)

	pathfinder := pathfind.New(cfg.World.Width, cfg.World.Height, pathfind.Config{
		ZoneSize:     cfg.Pathfind.ZoneSize,
		ClusterSize:  cfg.Pathfind.ClusterSize,
		CellSize:     cfg.Pathfind.CellSize,
		MaxCacheSize: cfg.Pathfind.MaxCacheSize,
		CacheTTL:     cfg.Pathfind.CacheTTL.Std(),
	}, logger, metrics)

	// The engine is single-threaded by contract; the HTTP edge serializes
	// every pathfinder touch behind one mutex.
	var pfMu sync.Mutex

	h := newHub(logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/path", pathHandler(pathfinder, &pfMu))
	mux.HandleFunc("/paths", batchPathHandler(pathfinder, &pfMu, cfg.Pathfind.MaxPathsPerFrame))

	server := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		return runTicks(ctx, cfg.Server.TickRate, sim, pathfinder, &pfMu, h, logger)
	})

	if err := group.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// runTicks drives the simulator at the configured rate. Queued client
// commands apply at the top of each tick, before Update, keeping the
// engine's single-threaded contract intact.
func runTicks(ctx context.Context, tickRate int, sim *crowd.Simulator, pf *pathfind.HierarchicalPathfinder, pfMu *sync.Mutex, h *hub, logger *zap.Logger) error {
	interval := time.Second / time.Duration(tickRate)
	dt := interval.Seconds()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var tick uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		tick++

		for _, cmd := range h.drainCommands() {
			applyCommand(sim, pf, pfMu, cmd, logger)
		}

		sim.Update(dt)

		frame := stateMessage{
			Type:       "state",
			Tick:       tick,
			Agents:     sim.Snapshot(),
			Stats:      sim.Stats(),
			ServerTime: time.Now().UnixMilli(),
		}
		data, err := json.Marshal(frame)
		if err != nil {
			logger.Error("marshal state", zap.Error(err))
			continue
		}
		h.broadcast(data)
	}
}

func applyCommand(sim *crowd.Simulator, pf *pathfind.HierarchicalPathfinder, pfMu *sync.Mutex, cmd command, logger *zap.Logger) {
	switch cmd.Type {
	case "spawn":
		radius := cmd.Radius
		if radius <= 0 {
			radius = 5
		}
		speed := cmd.Speed
		if speed <= 0 {
			speed = 60
		}
		sim.AddAgent(crowd.AgentConfig{
			ID:       cmd.AgentID,
			Group:    cmd.Group,
			Position: geom.Vec2{X: cmd.X, Z: cmd.Z},
			Radius:   radius,
			MaxSpeed: speed,
		})
	case "remove":
		sim.RemoveAgent(cmd.AgentID)
	case "destination":
		sim.SetDestination(cmd.AgentID, cmd.X, cmd.Z, cmd.DestID)
	case "group":
		sim.SetGroupDestination(cmd.Group, cmd.X, cmd.Z)
	case "addObstacle":
		sim.AddObstacle(cmd.X, cmd.Z)
		pfMu.Lock()
		pf.AddObstacle(cmd.X, cmd.Z)
		pfMu.Unlock()
	case "removeObstacle":
		sim.RemoveObstacle(cmd.X, cmd.Z)
		pfMu.Lock()
		pf.RemoveObstacle(cmd.X, cmd.Z)
		pfMu.Unlock()
	case "regenerate":
		sim.RegenerateFlowFields()
	default:
		logger.Debug("unknown command", zap.String("type", cmd.Type))
	}
}

// pathHandler serves one-off route queries for NPC locomotion controllers.
func pathHandler(pf *pathfind.HierarchicalPathfinder, pfMu *sync.Mutex) http.HandlerFunc {
	type pathRequest struct {
		Start geom.Vec2 `json:"start"`
		Goal  geom.Vec2 `json:"goal"`
	}
	type pathResponse struct {
		Waypoints []geom.Vec2 `json:"waypoints"`
		Cost      float64     `json:"cost,omitempty"`
		Level     int         `json:"level"`
		Cached    bool        `json:"cached"`
		Reachable bool        `json:"reachable"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req pathRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pfMu.Lock()
		path := pf.FindPath(req.Start, req.Goal)
		pfMu.Unlock()

		resp := pathResponse{
			Waypoints: path.Waypoints,
			Level:     path.Level,
			Cached:    path.Cached,
			Reachable: len(path.Waypoints) > 0,
		}
		if !math.IsInf(path.Cost, 1) {
			resp.Cost = path.Cost
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// batchPathHandler resolves many queries under the per-frame search budget.
// Requests past the budget are absent from the response; callers retry them
// next frame with whatever stale path they hold.
func batchPathHandler(pf *pathfind.HierarchicalPathfinder, pfMu *sync.Mutex, budget int) http.HandlerFunc {
	type batchResponse struct {
		Resolved map[string][]geom.Vec2 `json:"resolved"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var requests []pathfind.Request
		if err := json.NewDecoder(r.Body).Decode(&requests); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pfMu.Lock()
		results := pf.FindPathsBatched(requests, budget)
		pfMu.Unlock()

		resp := batchResponse{Resolved: make(map[string][]geom.Vec2, len(results))}
		for id, path := range results {
			resp.Resolved[id] = path.Waypoints
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

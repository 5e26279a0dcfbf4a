// Package app wires one shadow computation run together: load config,
// read the DTM/DSM and AOI, run the pipeline, write the output raster, and
// optionally keep serving progress/query traffic afterward. Adapted from
// the teacher's App: the same context+WaitGroup+signal shutdown skeleton,
// but driving a single bounded computation instead of a long-lived fleet
// of weather station collectors.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/panjf2000/gnet/v2"

	"github.com/stbrinkmann/shadowscan/internal/geo"
	"github.com/stbrinkmann/shadowscan/internal/history"
	"github.com/stbrinkmann/shadowscan/internal/log"
	"github.com/stbrinkmann/shadowscan/internal/pipeline"
	"github.com/stbrinkmann/shadowscan/internal/progress"
	"github.com/stbrinkmann/shadowscan/internal/rasterio"
	"github.com/stbrinkmann/shadowscan/internal/restserver"
	"github.com/stbrinkmann/shadowscan/internal/shaderr"
	"github.com/stbrinkmann/shadowscan/internal/shadowkernel"
	"github.com/stbrinkmann/shadowscan/internal/shadowstore"
	"github.com/stbrinkmann/shadowscan/pkg/config"
)

// resultStore is the tiny in-memory Store the REST server reads from; one
// run's result is kept resident for the lifetime of the process.
type resultStore struct {
	mu     sync.RWMutex
	latest *pipeline.Result
	byID   map[string]*pipeline.Result
}

func newResultStore() *resultStore {
	return &resultStore{byID: make(map[string]*pipeline.Result)}
}

func (s *resultStore) put(r *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = r
	s.byID[r.RunID] = r
}

func (s *resultStore) Get(runID string) (*pipeline.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[runID]
	return r, ok
}

func (s *resultStore) Latest() (*pipeline.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// App represents one shadow computation run and its optional servers.
type App struct {
	cfg *config.RunConfig
	io  rasterio.FileIO

	store   *resultStore
	ledger  *history.Ledger
	shadows *shadowstore.Store
}

// New creates an application instance from a parsed run configuration.
func New(cfg *config.RunConfig) *App {
	return &App{cfg: cfg, store: newResultStore()}
}

// Run executes the configured shadow computation, writes its output
// raster, and — if the progress or REST server is enabled — blocks
// serving query traffic until a shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dtm, err := a.io.ReadGrid(a.cfg.DTMPath)
	if err != nil {
		return err
	}
	dsm, err := a.io.ReadGrid(a.cfg.DSMPath)
	if err != nil {
		return err
	}

	aoi, err := a.loadAOI()
	if err != nil {
		return err
	}

	if a.cfg.History.Enabled {
		ledger, err := history.Open(a.cfg.History.DBPath)
		if err != nil {
			return fmt.Errorf("opening run ledger: %w", err)
		}
		a.ledger = ledger
		defer ledger.Close()
	}

	if a.cfg.ShadowStore.Enabled {
		store, err := shadowstore.New(ctx, a.cfg.ShadowStore.ConnectionString)
		if err != nil {
			return fmt.Errorf("connecting to shadow store: %w", err)
		}
		a.shadows = store
		defer store.Close()
	}

	var sink pipeline.ProgressSink
	var progressServer *progress.Server
	if a.cfg.Progress.Enabled {
		progressServer = progress.NewServer()
		sink = progressServer
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := progressServer.Run(a.cfg.Progress.Addr); err != nil {
				log.Errorf("progress server error: %v", err)
			}
		}()
	}

	start, end, err := parseDateRange(a.cfg.StartDate, a.cfg.EndDate)
	if err != nil {
		return err
	}

	quality := qualityFromConfig(a.cfg.ShadowQuality)
	runStart := time.Now()

	log.Info("starting shadow computation run...")
	result, err := pipeline.Run(ctx, dtm, dsm, aoi, pipeline.Options{
		StartDate:      start,
		EndDate:        end,
		HourInterval:   a.cfg.HourInterval,
		BufferMeters:   a.cfg.BufferMeters,
		AnglePrecision: a.cfg.AnglePrecision,
		Quality:        quality,
		CPUCores:       a.cfg.CPUCores,
		Geographic:     isGeographic(dtm.CRS),
	}, sink)
	if err != nil {
		return err
	}
	wallTime := time.Since(runStart)
	log.Infof("shadow computation run %s completed in %s", result.RunID, wallTime)

	a.store.put(result)

	if err := a.writeOutput(result); err != nil {
		return err
	}
	if a.ledger != nil {
		if err := a.ledger.Record(result, wallTime); err != nil {
			log.Errorf("failed to record run in history ledger: %v", err)
		}
	}
	if a.shadows != nil {
		if err := a.shadows.PersistRun(ctx, result); err != nil {
			log.Errorf("failed to persist run to shadow store: %v", err)
		}
	}

	if !a.cfg.RESTServer.Enabled && !a.cfg.Progress.Enabled {
		return nil
	}

	var restServer *restserver.Server
	if a.cfg.RESTServer.Enabled {
		host, port, err := splitHostPort(a.cfg.RESTServer.Addr)
		if err != nil {
			return fmt.Errorf("parsing rest.addr: %w", err)
		}
		restServer = restserver.New(ctx, &wg, restserver.Config{ListenAddr: host, Port: port}, a.store)
		restServer.Start()
	}

	log.Info("serving query/progress traffic; press Ctrl+C to stop")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	cancel()
	if restServer != nil {
		if err := restServer.Shutdown(context.Background()); err != nil {
			log.Errorf("query API server shutdown error: %v", err)
		}
	}
	if progressServer != nil {
		if err := gnet.Stop(context.Background(), a.cfg.Progress.Addr); err != nil {
			log.Errorf("progress server shutdown error: %v", err)
		}
	}
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")
	return nil
}

func (a *App) loadAOI() (geo.Polygon, error) {
	if a.cfg.AOI.Path != "" {
		return a.io.ReadPolygon(a.cfg.AOI.Path)
	}
	if len(a.cfg.AOI.Ring) == 0 {
		return geo.Polygon{}, shaderr.Configf("app", "no AOI configured: set aoi.path or aoi.ring")
	}
	ring := make([][2]float64, len(a.cfg.AOI.Ring))
	copy(ring, a.cfg.AOI.Ring)
	return ringToPolygon(ring), nil
}

func (a *App) writeOutput(result *pipeline.Result) error {
	if a.cfg.Output.RasterPath == "" {
		return nil
	}
	bands, descriptions := assembleBands(result)
	return a.io.WriteMultiband(
		a.cfg.Output.RasterPath,
		bands,
		len(result.AOICells), 1,
		result.ClipResult.Heights.Transform,
		result.ClipResult.Heights.CRS,
		descriptions,
	)
}

func qualityFromConfig(q config.ShadowQuality) shadowkernel.Quality {
	switch q {
	case config.QualityFast:
		return shadowkernel.QualityFast
	case config.QualityHigh:
		return shadowkernel.QualityHigh
	case config.QualityScientific:
		return shadowkernel.QualityScientific
	default:
		return shadowkernel.QualityNormal
	}
}

func isGeographic(crs string) bool {
	return crs == "" || crs == "EPSG:4326" || crs == "WGS84" || crs == "local-geographic"
}

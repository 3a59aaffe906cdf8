package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/l1jgo/scenegraph/internal/admin"
	"github.com/l1jgo/scenegraph/internal/config"
	"github.com/l1jgo/scenegraph/internal/core/event"
	coresys "github.com/l1jgo/scenegraph/internal/core/system"
	"github.com/l1jgo/scenegraph/internal/data"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/l1jgo/scenegraph/internal/metrics"
	"github.com/l1jgo/scenegraph/internal/persist"
	"github.com/l1jgo/scenegraph/internal/scene"
	"github.com/l1jgo/scenegraph/internal/scripting"
	"github.com/l1jgo/scenegraph/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(sceneName string, dims int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            scenegraph  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mscene:\033[0m %s \033[90m(%dD)\033[0m\n\n", sceneName, dims)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	cfgPath := "config/scene.toml"
	if p := os.Getenv("SCENE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Scene.Name, cfg.Scene.Dimensions)

	if cfg.Scene.Dimensions == 2 {
		return serve(cfg, log, geom.RectFactory)
	}
	return serve(cfg, log, geom.BoxFactory)
}

// serve builds the scene for one dimensionality and runs the frame loop
// until SIGINT or SIGTERM.
func serve[B geom.Bounds[B]](cfg *config.Config, log *zap.Logger, factory geom.Factory[B]) error {
	// 1. Scene description
	printSection("scene")
	file, err := data.LoadSceneFile(cfg.Scene.File)
	if err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	printOK(fmt.Sprintf("loaded %s", cfg.Scene.File))

	// 2. Optional PostgreSQL snapshot store
	var (
		db   *persist.DB
		repo *persist.SnapshotRepo
	)
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err = persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := db.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("schema at version %d", version))

		repo = persist.NewSnapshotRepo(db)
		snap, err := repo.LoadLatest(ctx, cfg.Scene.Name)
		switch {
		case err == nil:
			file.Objects = data.ObjectsFromStates(snap.Objects)
			printOK(fmt.Sprintf("restored snapshot %d (frame %d)", snap.ID, snap.Frame))
		case errors.Is(err, persist.ErrNoSnapshot):
			printOK("no snapshot, starting from the scene file")
		default:
			return fmt.Errorf("restore: %w", err)
		}
	}

	// 3. Build the scene
	bus := event.NewBus()
	sc := scene.NewScene(scene.Config{
		Threshold: cfg.Tree.SubdivideThreshold,
		MaxDepth:  cfg.Tree.MaxDepth,
	}, factory, scene.WithBus(bus), scene.WithLogger(log))
	if err := data.Build(sc, file); err != nil {
		return fmt.Errorf("build scene: %w", err)
	}
	stats, err := sc.Flush()
	if err != nil {
		log.Warn("objects outside their graph were dropped", zap.Error(err))
	}
	printStat("graphs", len(sc.Graphs()))
	printStat("portals", len(sc.Portals()))
	printStat("objects", stats.Added)
	fmt.Println()

	// 4. Scripting
	printSection("scripting")
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, scripting.Bind(sc), log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	printOK(fmt.Sprintf("scripts loaded from %s", cfg.Scripting.Dir))
	fmt.Println()

	// 5. Systems
	runner := coresys.NewRunner()
	runner.Register(system.NewFlushSystem(sc, log))
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewScriptSystem(engine, sc, bus))
	runner.Register(system.NewMotionSystem(sc, log))

	cull := system.NewCullSystem(sc, 1)
	if cam := camera(cfg, file); cam != nil {
		region, err := data.CameraRegion(factory, *cam)
		if err != nil {
			return err
		}
		cull.SetCamera(cam.Graph, region)
	}
	runner.Register(cull)

	var snapshots *system.SnapshotSystem[B]
	if repo != nil {
		snapshots = system.NewSnapshotSystem(sc, repo, cfg.Scene.Name, cfg.Persist.SnapshotEvery, cfg.Persist.Timeout, log)
		runner.Register(snapshots)
	}

	// 6. Admin endpoints
	var frames, objects atomic.Int64
	started := time.Now()
	adminCtx, stopAdmin := context.WithCancel(context.Background())
	defer stopAdmin()
	if cfg.Admin.BindAddress != "" {
		mux := admin.NewMux(func() admin.Status {
			st := admin.Status{
				Scene:   cfg.Scene.Name,
				Frame:   uint64(frames.Load()),
				Objects: int(objects.Load()),
				Uptime:  time.Since(started).Round(time.Second).String(),
			}
			if db != nil {
				pool := db.Stats()
				st.Database = &pool
			}
			return st
		})
		go admin.ListenAndServe(adminCtx, log, &http.Server{
			Addr:              cfg.Admin.BindAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	// 7. Frame loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	interval := cfg.Scene.FrameInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	printSection("ready")
	if cfg.Admin.BindAddress != "" {
		printReady(fmt.Sprintf("admin on %s", cfg.Admin.BindAddress))
	}
	printReady(fmt.Sprintf("frame loop started (%s per frame)", interval))
	fmt.Println()

	engine.Start()
	for {
		select {
		case <-ticker.C:
			start := time.Now()
			runner.Tick(interval)
			metrics.ObserveFrame(time.Since(start))
			frames.Store(int64(runner.Frames()))
			objects.Store(int64(countPlaced(sc)))
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			if snapshots != nil {
				snapshots.SaveNow()
			}
			log.Info("scene stopped", zap.Uint64("frames", runner.Frames()))
			return nil
		}
	}
}

// camera picks the configured camera, falling back to the scene file's.
func camera(cfg *config.Config, file *data.SceneFile) *data.CameraEntry {
	if c := cfg.Scene.Camera; c != nil {
		return &data.CameraEntry{Graph: c.Graph, Center: data.Vec3(c.Center), Half: data.Vec3(c.Half)}
	}
	return file.Camera
}

func countPlaced[B geom.Bounds[B]](sc *scene.Scene[B]) int {
	n := 0
	for _, g := range sc.Graphs() {
		n += g.Len()
	}
	return n
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

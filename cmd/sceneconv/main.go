// sceneconv exports persisted scene snapshots as YAML scene files and prunes
// old snapshots.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/l1jgo/scenegraph/internal/config"
	"github.com/l1jgo/scenegraph/internal/data"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/l1jgo/scenegraph/internal/persist"
	"github.com/l1jgo/scenegraph/internal/scene"
	"go.uber.org/zap"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  sceneconv export [-config scene.toml] <output.yaml>")
	fmt.Fprintln(os.Stderr, "  sceneconv prune  [-config scene.toml] [-keep N]")
	fmt.Fprintln(os.Stderr, "  sceneconv migrate [-config scene.toml] [-to VERSION]")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "config/scene.toml", "server config")
	keep := fs.Int("keep", 10, "snapshots to keep when pruning")
	to := fs.Int64("to", -1, "schema version to roll back to; -1 migrates up")
	_ = fs.Parse(os.Args[2:])

	var err error
	switch cmd {
	case "export":
		if fs.NArg() != 1 {
			usage()
			os.Exit(1)
		}
		err = export(*cfgPath, fs.Arg(0))
	case "prune":
		err = prune(*cfgPath, *keep)
	case "migrate":
		err = migrate(*cfgPath, *to)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func open(ctx context.Context, cfgPath string) (*config.Config, *persist.DB, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := persist.NewDB(ctx, cfg.Database, zap.NewNop())
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	return cfg, db, nil
}

func export(cfgPath, outPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, db, err := open(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer db.Close()

	snap, err := persist.NewSnapshotRepo(db).LoadLatest(ctx, cfg.Scene.Name)
	if err != nil {
		return err
	}
	file, err := data.LoadSceneFile(cfg.Scene.File)
	if err != nil {
		return err
	}

	var out *data.SceneFile
	if cfg.Scene.Dimensions == 2 {
		out, err = describe(geom.RectFactory, file, snap)
	} else {
		out, err = describe(geom.BoxFactory, file, snap)
	}
	if err != nil {
		return err
	}
	out.Camera = file.Camera

	raw, err := out.Marshal()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := os.WriteFile(outPath, raw, 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote snapshot %d (frame %d, %d objects) to %s\n", snap.ID, snap.Frame, len(snap.Objects), outPath)
	return nil
}

// describe rebuilds the graphs and portals of file and pairs them with the
// snapshot's objects.
func describe[B geom.Bounds[B]](factory geom.Factory[B], file *data.SceneFile, snap *persist.Snapshot) (*data.SceneFile, error) {
	layout := *file
	layout.Objects = nil
	s := scene.NewScene(scene.Config{Threshold: 1}, factory)
	if err := data.Build(s, &layout); err != nil {
		return nil, err
	}
	return data.Describe(s, snap.Scene, snap.Objects), nil
}

func prune(cfgPath string, keep int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, db, err := open(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := persist.NewSnapshotRepo(db).Prune(ctx, cfg.Scene.Name, keep)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d snapshots of %s\n", n, cfg.Scene.Name)
	return nil
}

func migrate(cfgPath string, to int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, db, err := open(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if to >= 0 {
		if err := db.Rollback(ctx, to); err != nil {
			return err
		}
	} else if _, err := db.Migrate(ctx); err != nil {
		return err
	}
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Schema at version %d\n", version)
	return nil
}

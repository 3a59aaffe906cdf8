package persist

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/l1jgo/scenegraph/internal/scene"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrNoSnapshot = errors.New("no snapshot")

// Snapshot is one persisted capture of a scene's placed objects.
type Snapshot struct {
	ID        int64
	Scene     string
	RunID     uuid.UUID
	Frame     uint64
	Digest    []byte
	CreatedAt time.Time
	Objects   []scene.ObjectState
}

// SnapshotRepo stores scene snapshots. A snapshot whose content matches the
// last one saved for the same scene is skipped.
type SnapshotRepo struct {
	db    *DB
	runID uuid.UUID
	last  map[string][]byte
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{
		db:    db,
		runID: uuid.New(),
		last:  make(map[string][]byte),
	}
}

// RunID identifies this server process on every snapshot it writes.
func (r *SnapshotRepo) RunID() uuid.UUID { return r.runID }

// Save writes states as a new snapshot. It reports false without touching
// the database when nothing changed since the previous save.
func (r *SnapshotRepo) Save(ctx context.Context, sceneName string, frame uint64, states []scene.ObjectState) (bool, error) {
	digest := Digest(states)
	if bytes.Equal(r.last[sceneName], digest) {
		return false, nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO scene_snapshots (scene, run_id, frame, digest, object_count)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		sceneName, r.runID, int64(frame), digest, len(states),
	).Scan(&id); err != nil {
		return false, fmt.Errorf("snapshot insert: %w", err)
	}

	rows := make([][]any, 0, len(states))
	for _, st := range states {
		rows = append(rows, []any{
			id, int64(st.ID), st.Name, st.Graph, int64(st.Parent),
			st.Local[:], vecSlice(st.Extent), vecSlice(st.Velocity),
		})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"snapshot_objects"},
		[]string{"snapshot_id", "object_id", "name", "graph", "parent_id", "local", "extent", "velocity"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return false, fmt.Errorf("snapshot objects: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("snapshot commit: %w", err)
	}
	r.last[sceneName] = digest
	r.db.log.Debug("snapshot saved",
		zap.String("scene", sceneName),
		zap.Int64("id", id),
		zap.Uint64("frame", frame),
		zap.Int("objects", len(states)))
	return true, nil
}

// LoadLatest returns the newest snapshot of sceneName, or ErrNoSnapshot.
func (r *SnapshotRepo) LoadLatest(ctx context.Context, sceneName string) (*Snapshot, error) {
	var s Snapshot
	var frame int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, scene, run_id, frame, digest, created_at
		 FROM scene_snapshots
		 WHERE scene = $1
		 ORDER BY id DESC
		 LIMIT 1`, sceneName,
	).Scan(&s.ID, &s.Scene, &s.RunID, &frame, &s.Digest, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("scene %q: %w", sceneName, ErrNoSnapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	s.Frame = uint64(frame)

	rows, err := r.db.Pool.Query(ctx,
		`SELECT object_id, name, graph, parent_id, local, extent, velocity
		 FROM snapshot_objects
		 WHERE snapshot_id = $1
		 ORDER BY object_id`, s.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load snapshot objects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			st                      scene.ObjectState
			id, parent              int64
			local, extent, velocity []float64
		)
		if err := rows.Scan(&id, &st.Name, &st.Graph, &parent, &local, &extent, &velocity); err != nil {
			return nil, err
		}
		if len(local) != len(st.Local) || len(extent) != 3 || len(velocity) != 3 {
			return nil, fmt.Errorf("snapshot %d object %d: malformed vectors", s.ID, id)
		}
		st.ID = ecs.EntityID(id)
		st.Parent = ecs.EntityID(parent)
		st.Local = geom.Mat4(local)
		st.Extent = sliceVec(extent)
		st.Velocity = sliceVec(velocity)
		s.Objects = append(s.Objects, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.last[sceneName] = s.Digest
	return &s, nil
}

// Prune deletes all but the newest keep snapshots of sceneName.
func (r *SnapshotRepo) Prune(ctx context.Context, sceneName string, keep int) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM scene_snapshots
		 WHERE scene = $1 AND id NOT IN (
		     SELECT id FROM scene_snapshots WHERE scene = $1 ORDER BY id DESC LIMIT $2
		 )`, sceneName, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Digest hashes states in order. Equal captures give equal digests.
func Digest(states []scene.ObjectState) []byte {
	h, _ := blake2b.New256(nil)
	var buf [8]byte
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	putF64 := func(v float64) { putU64(math.Float64bits(v)) }
	putStr := func(s string) {
		putU64(uint64(len(s)))
		h.Write([]byte(s))
	}
	putVec := func(v r3.Vec) {
		putF64(v.X)
		putF64(v.Y)
		putF64(v.Z)
	}
	for _, st := range states {
		putU64(uint64(st.ID))
		putStr(st.Name)
		putStr(st.Graph)
		putU64(uint64(st.Parent))
		for _, c := range st.Local {
			putF64(c)
		}
		putVec(st.Extent)
		putVec(st.Velocity)
	}
	return h.Sum(nil)
}

func vecSlice(v r3.Vec) []float64 { return []float64{v.X, v.Y, v.Z} }

func sliceVec(s []float64) r3.Vec { return r3.Vec{X: s[0], Y: s[1], Z: s[2]} }

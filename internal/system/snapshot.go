package system

import (
	"context"
	"time"

	coresys "github.com/l1jgo/scenegraph/internal/core/system"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/l1jgo/scenegraph/internal/metrics"
	"github.com/l1jgo/scenegraph/internal/scene"
	"go.uber.org/zap"
)

// Saver persists captured scene states.
type Saver interface {
	Save(ctx context.Context, sceneName string, frame uint64, states []scene.ObjectState) (bool, error)
}

// SnapshotSystem saves the scene every interval frames. Phase 5 (Persist).
type SnapshotSystem[B geom.Bounds[B]] struct {
	scene     *scene.Scene[B]
	saver     Saver
	name      string
	interval  int
	timeout   time.Duration
	log       *zap.Logger
	tickCount int
}

func NewSnapshotSystem[B geom.Bounds[B]](s *scene.Scene[B], saver Saver, name string, intervalFrames int, timeout time.Duration, log *zap.Logger) *SnapshotSystem[B] {
	return &SnapshotSystem[B]{
		scene:    s,
		saver:    saver,
		name:     name,
		interval: intervalFrames,
		timeout:  timeout,
		log:      log,
	}
}

func (s *SnapshotSystem[B]) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *SnapshotSystem[B]) Update(_ time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.SaveNow()
}

// SaveNow snapshots immediately. Called on shutdown.
func (s *SnapshotSystem[B]) SaveNow() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	states := s.scene.States()
	saved, err := s.saver.Save(ctx, s.name, s.scene.Frame(), states)
	switch {
	case err != nil:
		metrics.CountSnapshot("failed")
		s.log.Error("snapshot failed", zap.String("scene", s.name), zap.Error(err))
	case saved:
		metrics.CountSnapshot("saved")
		s.log.Info("snapshot saved",
			zap.String("scene", s.name),
			zap.Uint64("frame", s.scene.Frame()),
			zap.Int("objects", len(states)))
	default:
		metrics.CountSnapshot("unchanged")
	}
}

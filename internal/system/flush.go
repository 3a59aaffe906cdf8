package system

import (
	"time"

	coresys "github.com/l1jgo/scenegraph/internal/core/system"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/l1jgo/scenegraph/internal/scene"
	"go.uber.org/zap"
)

// FlushSystem applies the scene's deferred spawns and despawns, exactly once
// per frame and before anything traverses the trees. Phase 0 (Flush).
type FlushSystem[B geom.Bounds[B]] struct {
	scene *scene.Scene[B]
	log   *zap.Logger
	last  scene.FlushStats
}

func NewFlushSystem[B geom.Bounds[B]](s *scene.Scene[B], log *zap.Logger) *FlushSystem[B] {
	return &FlushSystem[B]{scene: s, log: log}
}

func (s *FlushSystem[B]) Phase() coresys.Phase { return coresys.PhaseFlush }

func (s *FlushSystem[B]) Update(_ time.Duration) {
	stats, err := s.scene.Flush()
	s.last = stats
	if err != nil {
		s.log.Warn("flush dropped objects",
			zap.Int("rejected", stats.Rejected),
			zap.Error(err))
	}
	if stats.Missing > 0 {
		s.log.Debug("flush skipped stale despawns", zap.Int("missing", stats.Missing))
	}
}

// Last returns the stats of the most recent flush.
func (s *FlushSystem[B]) Last() scene.FlushStats { return s.last }

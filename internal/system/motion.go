package system

import (
	"time"

	coresys "github.com/l1jgo/scenegraph/internal/core/system"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/l1jgo/scenegraph/internal/scene"
	"go.uber.org/zap"
)

// MotionSystem integrates velocities and tweens. Phase 3 (Update).
type MotionSystem[B geom.Bounds[B]] struct {
	scene *scene.Scene[B]
	log   *zap.Logger
}

func NewMotionSystem[B geom.Bounds[B]](s *scene.Scene[B], log *zap.Logger) *MotionSystem[B] {
	return &MotionSystem[B]{scene: s, log: log}
}

func (s *MotionSystem[B]) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MotionSystem[B]) Update(dt time.Duration) {
	if err := s.scene.Step(dt); err != nil {
		s.log.Debug("motion stopped", zap.Error(err))
	}
}

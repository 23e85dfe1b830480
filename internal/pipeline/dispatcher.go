package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"terrapipe/internal/logging"
	"terrapipe/internal/scenes"
	"terrapipe/internal/services"
)

// Stats summarizes one stage pass.
type Stats struct {
	Attempted int
	Succeeded int
	Failed    int
}

// forEachScene runs fn against each scene on a bounded worker pool. A
// per-scene failure is logged and counted but does not stop the batch
// unless it is fatal or stop-on-first-fail is configured. The whole batch
// shares one correlation id.
func (p *Pipeline) forEachScene(ctx context.Context, stage string, batch []*scenes.Scene, fn func(context.Context, *scenes.Scene) error) (Stats, error) {
	stats := Stats{Attempted: len(batch)}
	if len(batch) == 0 {
		return stats, nil
	}

	runID := uuid.NewString()
	ctx = services.WithRequestID(ctx, runID)
	ctx = services.WithStage(ctx, stage)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.logger, stage))
	logger.Info("stage pass starting", logging.Int("scenes", len(batch)))

	var (
		mu     sync.Mutex
		failed int
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers())
	for _, scene := range batch {
		scene := scene
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			sceneCtx := services.WithScenePID(groupCtx, scene.PID)
			err := fn(sceneCtx, scene)
			if err == nil {
				return nil
			}
			logging.WithContext(sceneCtx, logger).Error("scene processing failed",
				logging.String(logging.FieldSceneID, scene.SceneID),
				logging.Error(err))
			if services.IsFatal(err) || p.cfg.Workflow.StopOnFirstFail {
				return err
			}
			mu.Lock()
			failed++
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return stats, err
	}

	stats.Failed = failed
	stats.Succeeded = stats.Attempted - failed
	logger.Info("stage pass finished",
		logging.Int("succeeded", stats.Succeeded),
		logging.Int("failed", stats.Failed))
	if failed > 0 {
		return stats, fmt.Errorf("%s: %d of %d scenes failed", stage, failed, stats.Attempted)
	}
	return stats, nil
}

func (p *Pipeline) workers() int {
	if p.cfg.Workflow.Workers > 0 {
		return p.cfg.Workflow.Workers
	}
	return 1
}

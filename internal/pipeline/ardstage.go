package pipeline

import (
	"context"
	"os"
	"time"

	"terrapipe/internal/ard"
	"terrapipe/internal/logging"
	"terrapipe/internal/scenes"
)

// ConvertScenes runs ARD conversion on every downloaded scene that has not
// been converted. A scene finishes the stage in exactly one of two states:
// converted (ARDDone with a product path) or quarantined (Invalid, when
// the tool ran cleanly but produced nothing). A tool failure leaves the
// record untouched so the scene is retried.
func (p *Pipeline) ConvertScenes(ctx context.Context) (Stats, error) {
	batch, err := p.store.ScenesToARD(ctx)
	if err != nil {
		return Stats{}, err
	}
	return p.forEachScene(ctx, "ard", batch, p.convertScene)
}

func (p *Pipeline) convertScene(ctx context.Context, scene *scenes.Scene) error {
	workDir := p.layout.ardWorkDir(scene)
	tmpDir := p.layout.ardTmpDir(scene)

	start := time.Now().UTC()
	outcome, err := p.converter.Convert(ctx, ard.Request{
		SceneID:      scene.SceneID,
		DownloadPath: scene.DownloadPath,
		WorkDir:      workDir,
		TmpDir:       tmpDir,
		OutputDir:    p.layout.ardOutputDir(scene),
	})
	if err != nil {
		return err
	}
	end := time.Now().UTC()

	scene.ARDStart = &start
	scene.ARDEnd = &end
	if outcome.Valid {
		scene.ARDDone = true
		scene.ARDPath = outcome.ProductPath
	} else {
		scene.Invalid = true
		logging.WithContext(ctx, p.logger).Warn("scene produced no ard output, quarantined",
			logging.String(logging.FieldSceneID, scene.SceneID))
	}
	if err := p.store.Update(ctx, scene); err != nil {
		return err
	}

	// Scratch space is only reclaimed after the record commit; a failed
	// commit keeps it around for inspection.
	_ = os.RemoveAll(workDir)
	_ = os.RemoveAll(tmpDir)
	return nil
}

package pipeline

import (
	"context"
	"time"

	"terrapipe/internal/datacube"
	"terrapipe/internal/scenes"
)

// LoadScenes indexes every converted scene that is not yet in the
// datacube.
func (p *Pipeline) LoadScenes(ctx context.Context) (Stats, error) {
	batch, err := p.store.ScenesToDatacube(ctx)
	if err != nil {
		return Stats{}, err
	}
	return p.forEachScene(ctx, "dcload", batch, p.loadScene)
}

func (p *Pipeline) loadScene(ctx context.Context, scene *scenes.Scene) error {
	start := time.Now().UTC()
	if _, err := p.loader.Load(ctx, datacube.Request{
		SceneID:     scene.SceneID,
		ProductID:   scene.ProductID,
		Platform:    scene.Platform,
		AcquiredAt:  scene.AcquiredAt,
		ProductPath: scene.ARDPath,
		ManifestDir: p.layout.manifestDir(),
		NorthLat:    scene.NorthLat,
		SouthLat:    scene.SouthLat,
		EastLon:     scene.EastLon,
		WestLon:     scene.WestLon,
	}); err != nil {
		return err
	}
	end := time.Now().UTC()

	scene.DCLoadStart = &start
	scene.DCLoadEnd = &end
	scene.DCLoaded = true
	return p.store.Update(ctx, scene)
}

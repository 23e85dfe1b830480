package pipeline

import (
	"context"

	"terrapipe/internal/ard"
	"terrapipe/internal/scenes"
)

// GenerateQuicklooks renders preview images for converted scenes that have
// none. The result is merged into the scene's extended info without
// touching other sections.
func (p *Pipeline) GenerateQuicklooks(ctx context.Context) (Stats, error) {
	batch, err := p.store.ScenesNeedingQuicklook(ctx)
	if err != nil {
		return Stats{}, err
	}
	return p.forEachScene(ctx, "quicklook", batch, p.quicklookScene)
}

func (p *Pipeline) quicklookScene(ctx context.Context, scene *scenes.Scene) error {
	source, err := ard.FindVisibleGTIFF(scene.ARDPath)
	if err != nil {
		return err
	}
	result, err := p.quicklook.Generate(ctx, scene.SceneID, source, p.layout.quicklookDir(scene))
	if err != nil {
		return err
	}

	scene.EnsureExtendedInfo().Quicklook = &scenes.QuicklookInfo{
		Path:   result.Dir,
		Images: result.Images,
	}
	return p.store.Update(ctx, scene)
}

// GenerateTilecaches builds XYZ tile pyramids for converted scenes that
// have none.
func (p *Pipeline) GenerateTilecaches(ctx context.Context) (Stats, error) {
	batch, err := p.store.ScenesNeedingTilecache(ctx)
	if err != nil {
		return Stats{}, err
	}
	return p.forEachScene(ctx, "tilecache", batch, p.tilecacheScene)
}

func (p *Pipeline) tilecacheScene(ctx context.Context, scene *scenes.Scene) error {
	source, err := ard.FindVisibleGTIFF(scene.ARDPath)
	if err != nil {
		return err
	}
	result, err := p.tilecache.Generate(ctx, scene.SceneID, source, p.layout.tilecacheDir(scene))
	if err != nil {
		return err
	}

	scene.EnsureExtendedInfo().Tilecache = &scenes.TilecacheInfo{
		VisGTIFF: result.VisGTIFF,
		Path:     result.Dir,
	}
	return p.store.Update(ctx, scene)
}

package pipeline

import (
	"context"

	"terrapipe/internal/scenes"
)

// RunAnalysis executes every configured plugin against the converted
// scenes it has not yet completed. Plugin failures are recorded against
// the scene and do not count as stage failures; only store errors do.
func (p *Pipeline) RunAnalysis(ctx context.Context) (Stats, error) {
	var total Stats
	for _, analysis := range p.analyses {
		batch, err := p.store.ScenesForAnalysis(ctx, analysis.Name())
		if err != nil {
			return total, err
		}
		analysis := analysis
		stats, err := p.forEachScene(ctx, "analysis:"+analysis.Name(), batch, func(ctx context.Context, scene *scenes.Scene) error {
			_, err := p.runner.Run(ctx, analysis, scene)
			return err
		})
		total.Attempted += stats.Attempted
		total.Succeeded += stats.Succeeded
		total.Failed += stats.Failed
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// PluginNames returns the resolved plugin roster, in configuration order.
func (p *Pipeline) PluginNames() []string {
	names := make([]string, 0, len(p.analyses))
	for _, analysis := range p.analyses {
		names = append(names, analysis.Name())
	}
	return names
}

package plugins

import (
	"context"
	"fmt"
	"math"
)

func builtinFactories() map[string]Factory {
	return map[string]Factory{
		"scene-extent": func() Analysis { return &sceneExtent{precision: 6} },
	}
}

// sceneExtent derives footprint geometry from a scene's bounding box. It is
// mostly useful as a smoke test for the plugin framework, but the numbers
// it records are real.
type sceneExtent struct {
	precision int
}

func (p *sceneExtent) Name() string { return "scene-extent" }

func (p *sceneExtent) Configure(params map[string]any) error {
	if raw, ok := params["precision"]; ok {
		// TOML decodes numbers into int64 or float64 depending on the literal.
		switch v := raw.(type) {
		case int64:
			p.precision = int(v)
		case float64:
			p.precision = int(v)
		default:
			return fmt.Errorf("precision must be a number, got %T", raw)
		}
	}
	if p.precision < 0 || p.precision > 12 {
		return fmt.Errorf("precision out of range: %d", p.precision)
	}
	return nil
}

func (p *sceneExtent) Run(ctx context.Context, req Request) (Result, error) {
	scene := req.Scene
	if scene == nil {
		return Result{}, fmt.Errorf("no scene supplied")
	}
	if scene.NorthLat < scene.SouthLat || scene.EastLon < scene.WestLon {
		return Result{}, fmt.Errorf("scene %s has an inverted bounding box", scene.SceneID)
	}

	width := scene.EastLon - scene.WestLon
	height := scene.NorthLat - scene.SouthLat
	return Result{
		Success: true,
		Info: map[string]any{
			"center_lat": p.round((scene.NorthLat + scene.SouthLat) / 2),
			"center_lon": p.round((scene.EastLon + scene.WestLon) / 2),
			"width_deg":  p.round(width),
			"height_deg": p.round(height),
			"area_deg2":  p.round(width * height),
		},
	}, nil
}

func (p *sceneExtent) round(v float64) float64 {
	scale := math.Pow10(p.precision)
	return math.Round(v*scale) / scale
}

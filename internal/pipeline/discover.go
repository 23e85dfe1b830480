package pipeline

import (
	"context"
	"fmt"
	"time"

	"terrapipe/internal/catalog"
	"terrapipe/internal/logging"
	"terrapipe/internal/scenes"
	"terrapipe/internal/services"
)

// DiscoverResult reports what a catalog sweep changed.
type DiscoverResult struct {
	Found   int
	New     int
	Removed int
}

// Discover queries the catalog for scenes acquired since the newest one on
// record and registers the unknown ones. With fromStart the sweep restarts
// from the configured sensor start date, picking up republished scenes;
// duplicate scene ids are then settled and the losers' artifacts deleted.
func (p *Pipeline) Discover(ctx context.Context, fromStart bool) (DiscoverResult, error) {
	var result DiscoverResult
	logger := logging.NewComponentLogger(p.logger, "discover")

	after, err := p.discoveryWindowStart(ctx, fromStart)
	if err != nil {
		return result, err
	}

	found, err := p.searcher.Search(ctx, catalog.Query{
		AcquiredAfter: after,
		Platforms:     p.cfg.Sensor.Platforms,
		CloudCoverMax: p.cfg.Sensor.CloudCoverMax,
		BBox:          p.cfg.Sensor.BBox,
		MaxResults:    p.cfg.Sensor.MaxScenes,
	})
	if err != nil {
		return result, services.Wrap(services.ErrTransient, "discover", "catalog search", "", err)
	}
	result.Found = len(found)

	known, err := p.store.KnownSceneIDs(ctx)
	if err != nil {
		return result, err
	}

	var fresh []*scenes.Scene
	for _, meta := range found {
		if _, seen := known[meta.SceneID]; seen {
			if !fromStart {
				continue
			}
			// A full sweep only re-registers a known scene when the
			// provider republished it under a new product id.
			republished, err := p.isRepublished(ctx, meta)
			if err != nil {
				return result, err
			}
			if !republished {
				continue
			}
		}
		fresh = append(fresh, sceneFromMetadata(meta))
	}
	if len(fresh) > 0 {
		if err := p.store.InsertScenes(ctx, fresh); err != nil {
			return result, err
		}
	}
	result.New = len(fresh)

	removed, err := p.store.ResolveDuplicates(ctx, time.Now().UTC())
	if err != nil {
		return result, err
	}
	for _, scene := range removed {
		if err := p.layout.removeArtifacts(scene); err != nil {
			logger.Warn("removing duplicate artifacts failed",
				logging.String(logging.FieldSceneID, scene.SceneID),
				logging.Error(err))
		}
	}
	result.Removed = len(removed)

	logger.Info("catalog sweep finished",
		logging.Int("found", result.Found),
		logging.Int("new", result.New),
		logging.Int("removed", result.Removed),
		logging.Time("acquired_after", after))
	return result, nil
}

// discoveryWindowStart picks the acquisition timestamp the sweep starts
// from. Normally the newest acquisition on record; otherwise the
// configured sensor start date.
func (p *Pipeline) discoveryWindowStart(ctx context.Context, fromStart bool) (time.Time, error) {
	if !fromStart {
		latest, ok, err := p.store.LatestAcquired(ctx)
		if err != nil {
			return time.Time{}, err
		}
		if ok {
			return latest, nil
		}
	}
	start, err := time.Parse("2006-01-02", p.cfg.Sensor.StartDate)
	if err != nil {
		return time.Time{}, services.Wrap(services.ErrConfiguration, "discover", "start date",
			fmt.Sprintf("parse %q", p.cfg.Sensor.StartDate), err)
	}
	return start, nil
}

func (p *Pipeline) isRepublished(ctx context.Context, meta catalog.SceneMetadata) (bool, error) {
	existing, err := p.store.ScenesBySceneID(ctx, meta.SceneID)
	if err != nil {
		return false, err
	}
	for _, scene := range existing {
		if scene.ProductID == meta.ProductID {
			return false, nil
		}
	}
	return true, nil
}

func sceneFromMetadata(meta catalog.SceneMetadata) *scenes.Scene {
	return &scenes.Scene{
		SceneID:    meta.SceneID,
		ProductID:  meta.ProductID,
		Platform:   meta.Platform,
		Instrument: meta.Instrument,
		AcquiredAt: meta.AcquiredAt,
		NorthLat:   meta.NorthLat,
		SouthLat:   meta.SouthLat,
		EastLon:    meta.EastLon,
		WestLon:    meta.WestLon,
		CloudCover: meta.CloudCover,
		RemoteURL:  meta.DownloadURL,
		TotalSize:  meta.SizeBytes,
	}
}

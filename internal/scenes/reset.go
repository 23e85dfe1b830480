package scenes

import (
	"context"
	"fmt"

	"terrapipe/internal/services"
)

// ResetOptions selects which extra state ResetScene clears beyond the
// ARD, datacube and visual stages.
type ResetOptions struct {
	// Download also clears the download triple and path. The raw
	// download is usually still good, so this is opt-in.
	Download bool
	// Invalid re-qualifies a quarantined scene. The flag is terminal
	// otherwise; resetting a scene that failed quality checks without
	// asking for this leaves it excluded.
	Invalid bool
}

// ResetScene clears a scene's processing state so the later stages run
// again. The prior record is returned so the caller can delete orphaned
// artifacts. Plugin records are removed because their inputs are about
// to be regenerated.
func (s *Store) ResetScene(ctx context.Context, pid int64, opts ResetOptions) (*Scene, error) {
	scene, err := s.SceneByPID(ctx, pid)
	if err != nil {
		return nil, err
	}
	if scene == nil {
		return nil, services.Wrap(services.ErrNotFound, "reset", "scene", fmt.Sprintf("pid %d", pid), nil)
	}
	prior := *scene

	scene.ARDStart = nil
	scene.ARDEnd = nil
	scene.ARDDone = false
	scene.ARDPath = ""
	scene.DCLoadStart = nil
	scene.DCLoadEnd = nil
	scene.DCLoaded = false
	scene.ExtendedInfo = nil

	if opts.Invalid {
		scene.Invalid = false
	}
	if opts.Download {
		scene.DownloadStart = nil
		scene.DownloadEnd = nil
		scene.Downloaded = false
		scene.DownloadPath = ""
		scene.Archived = false
	}

	if err := s.Update(ctx, scene); err != nil {
		return nil, err
	}
	if _, err := s.DeletePluginRecords(ctx, pid); err != nil {
		return nil, err
	}
	return &prior, nil
}

// ResetDatacubeLoad clears only the datacube load state so the scene is
// offered to that stage again.
func (s *Store) ResetDatacubeLoad(ctx context.Context, pid int64) error {
	scene, err := s.SceneByPID(ctx, pid)
	if err != nil {
		return err
	}
	if scene == nil {
		return services.Wrap(services.ErrNotFound, "reset", "datacube", fmt.Sprintf("pid %d", pid), nil)
	}

	scene.DCLoadStart = nil
	scene.DCLoadEnd = nil
	scene.DCLoaded = false

	return s.Update(ctx, scene)
}

package pipeline

import (
	"context"
	"os"
	"time"

	"terrapipe/internal/scenes"
)

// DownloadScenes fetches every registered scene that has not been
// downloaded. The record is committed once with both timestamps, the
// payload path, and the measured size, so a crash mid-transfer leaves the
// scene eligible for the next pass.
func (p *Pipeline) DownloadScenes(ctx context.Context) (Stats, error) {
	batch, err := p.store.ScenesToDownload(ctx)
	if err != nil {
		return Stats{}, err
	}
	return p.forEachScene(ctx, "download", batch, p.downloadScene)
}

func (p *Pipeline) downloadScene(ctx context.Context, scene *scenes.Scene) error {
	start := time.Now().UTC()
	path, err := p.transport.Fetch(ctx, scene.RemoteURL, p.layout.downloadDir(scene))
	if err != nil {
		return err
	}
	end := time.Now().UTC()

	scene.DownloadStart = &start
	scene.DownloadEnd = &end
	scene.Downloaded = true
	scene.DownloadPath = path
	if size, err := payloadSize(path); err == nil && size > 0 {
		scene.TotalSize = size
	}
	return p.store.Update(ctx, scene)
}

// payloadSize measures a download on disk, descending one level when the
// transport unpacked an archive into a directory.
func payloadSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if fi, err := entry.Info(); err == nil {
			total += fi.Size()
		}
	}
	return total, nil
}

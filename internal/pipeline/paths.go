package pipeline

import (
	"os"
	"path/filepath"

	"terrapipe/internal/config"
	"terrapipe/internal/scenes"
)

// layout derives per-scene working directories from the configured roots.
// Stage outputs live under <root>/<acquisition day>/<scene id> so a day's
// scenes cluster together on disk.
type layout struct {
	paths config.Paths
}

func newLayout(paths config.Paths) layout {
	return layout{paths: paths}
}

func (l layout) sceneDir(root string, scene *scenes.Scene) string {
	return filepath.Join(root, scene.AcquiredAt.UTC().Format("20060102"), scene.SceneID)
}

func (l layout) downloadDir(scene *scenes.Scene) string {
	return l.sceneDir(l.paths.DownloadDir, scene)
}

func (l layout) ardOutputDir(scene *scenes.Scene) string {
	return l.sceneDir(l.paths.ARDDir, scene)
}

// ardWorkDir and ardTmpDir are scratch space, safe to wipe between runs.
func (l layout) ardWorkDir(scene *scenes.Scene) string {
	return filepath.Join(l.paths.TmpDir, scene.SceneID+"_work")
}

func (l layout) ardTmpDir(scene *scenes.Scene) string {
	return filepath.Join(l.paths.TmpDir, scene.SceneID+"_tmp")
}

func (l layout) quicklookDir(scene *scenes.Scene) string {
	return l.sceneDir(l.paths.QuicklookDir, scene)
}

func (l layout) tilecacheDir(scene *scenes.Scene) string {
	return l.sceneDir(l.paths.TilecacheDir, scene)
}

func (l layout) manifestDir() string {
	return filepath.Join(l.paths.DatacubeDir, "manifests")
}

// removeArtifacts deletes every on-disk output a scene may have produced.
// Used when a duplicate scene record loses canonicity and when a reset
// requests artifact cleanup.
func (l layout) removeArtifacts(scene *scenes.Scene) error {
	dirs := []string{
		l.downloadDir(scene),
		l.ardOutputDir(scene),
		l.ardWorkDir(scene),
		l.ardTmpDir(scene),
		l.quicklookDir(scene),
		l.tilecacheDir(scene),
	}
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}

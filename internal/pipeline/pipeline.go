package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"

	"terrapipe/internal/ard"
	"terrapipe/internal/catalog"
	"terrapipe/internal/config"
	"terrapipe/internal/datacube"
	"terrapipe/internal/download"
	"terrapipe/internal/logging"
	"terrapipe/internal/plugins"
	"terrapipe/internal/scenes"
	"terrapipe/internal/services"
	"terrapipe/internal/visuals"
)

// Pipeline wires the catalog, transport, external tools, and plugin runner
// around the scene store.
type Pipeline struct {
	cfg    *config.Config
	store  *scenes.Store
	logger *slog.Logger
	layout layout

	searcher  catalog.Searcher
	transport download.Transport
	converter *ard.Converter
	loader    *datacube.Loader
	quicklook *visuals.QuicklookGenerator
	tilecache *visuals.TilecacheGenerator
	analyses  []plugins.Analysis
	runner    *plugins.Runner

	registry     *plugins.Registry
	toolExecutor services.Executor
}

// Option overrides a pipeline collaborator, primarily for tests.
type Option func(*Pipeline)

// WithSearcher replaces the catalog client.
func WithSearcher(s catalog.Searcher) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.searcher = s
		}
	}
}

// WithTransport replaces the download transport.
func WithTransport(t download.Transport) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.transport = t
		}
	}
}

// WithExecutor routes every external tool through the given executor.
func WithExecutor(exec services.Executor) Option {
	return func(p *Pipeline) {
		p.toolExecutor = exec
	}
}

// WithRegistry supplies the plugin registry used to resolve configured
// plugins. Defaults to the builtin registry.
func WithRegistry(r *plugins.Registry) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.registry = r
		}
	}
}

// New builds a pipeline from configuration. Configured plugins are
// resolved eagerly so a bad plugin roster fails at startup, not mid-run.
func New(cfg *config.Config, store *scenes.Store, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		layout:   newLayout(cfg.Paths),
		registry: plugins.NewRegistry(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.searcher == nil {
		client, err := catalog.New(cfg.Sensor.CatalogURL, cfg.Sensor.APIKey)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "catalog", "", err)
		}
		p.searcher = client
	}
	if p.transport == nil {
		p.transport = download.NewTransport(
			download.WithTimeout(time.Duration(cfg.Download.TimeoutSeconds)*time.Second),
			download.WithRetries(cfg.Download.Retries),
		)
	}

	converter, err := ard.New(cfg.Tools.ARD.Command, cfg.Tools.ARD.Args, cfg.Tools.ARD.TimeoutSeconds, ardOptions(p.toolExecutor)...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "ard tool", "", err)
	}
	p.converter = converter

	loader, err := datacube.New(cfg.Tools.Datacube.Command, cfg.Tools.Datacube.Args, cfg.Tools.Datacube.TimeoutSeconds, datacubeOptions(p.toolExecutor)...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "datacube tool", "", err)
	}
	p.loader = loader

	ql, err := visuals.NewQuicklook(cfg.Tools.Quicklook.Command, cfg.Tools.Quicklook.Args, cfg.Tools.Quicklook.TimeoutSeconds, visualOptions(p.toolExecutor)...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "quicklook tool", "", err)
	}
	p.quicklook = ql

	tc, err := visuals.NewTilecache(cfg.Tools.Tilecache.Command, cfg.Tools.Tilecache.Args, cfg.Tools.Tilecache.TimeoutSeconds, visualOptions(p.toolExecutor)...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "tilecache tool", "", err)
	}
	p.tilecache = tc

	analyses, err := p.registry.Resolve(cfg.Plugins)
	if err != nil {
		return nil, err
	}
	p.analyses = analyses
	p.runner = plugins.NewRunner(store, cfg.Sensor, logging.NewComponentLogger(logger, "plugins"))

	return p, nil
}

// Run executes every stage in order under the run lock: discovery,
// download, ARD conversion, datacube load, quicklook, tilecache, and
// plugin analysis. Per-scene failures leave their records unadvanced for
// the next run and do not keep later stages from processing the scenes
// that did advance; they are joined into the returned error.
func (p *Pipeline) Run(ctx context.Context, fromStart bool) error {
	unlock, err := p.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := p.Discover(ctx, fromStart); err != nil {
		return err
	}
	stages := []func(context.Context) (Stats, error){
		p.DownloadScenes,
		p.ConvertScenes,
		p.LoadScenes,
		p.GenerateQuicklooks,
		p.GenerateTilecaches,
	}
	var stageErrs []error
	for _, stage := range stages {
		if _, err := stage(ctx); err != nil {
			if services.IsFatal(err) || p.cfg.Workflow.StopOnFirstFail || ctx.Err() != nil {
				return errors.Join(append(stageErrs, err)...)
			}
			stageErrs = append(stageErrs, err)
		}
	}
	if _, err := p.RunAnalysis(ctx); err != nil {
		stageErrs = append(stageErrs, err)
	}
	return errors.Join(stageErrs...)
}

// ResetScene rewinds a scene's processing state and deletes the on-disk
// outputs of the cleared stages. The download survives unless
// opts.Download is set.
func (p *Pipeline) ResetScene(ctx context.Context, pid int64, opts scenes.ResetOptions) (*scenes.Scene, error) {
	prior, err := p.store.ResetScene(ctx, pid, opts)
	if err != nil {
		return nil, err
	}

	stale := []string{
		p.layout.ardOutputDir(prior),
		p.layout.ardWorkDir(prior),
		p.layout.ardTmpDir(prior),
		p.layout.quicklookDir(prior),
		p.layout.tilecacheDir(prior),
	}
	if opts.Download {
		stale = append(stale, p.layout.downloadDir(prior))
	}
	for _, dir := range stale {
		if err := os.RemoveAll(dir); err != nil {
			p.logger.Warn("removing stale artifacts failed",
				logging.String(logging.FieldSceneID, prior.SceneID),
				logging.Error(err))
		}
	}
	return prior, nil
}

// acquireLock takes the advisory run lock so concurrent invocations
// against the same working tree cannot interleave store writes and
// artifact moves.
func (p *Pipeline) acquireLock() (func(), error) {
	lock := flock.New(p.cfg.Paths.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "lock", p.cfg.Paths.LockFile, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "lock",
			"another run holds "+p.cfg.Paths.LockFile, nil)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("releasing run lock failed", logging.Error(err))
		}
	}, nil
}

func ardOptions(exec services.Executor) []ard.Option {
	if exec == nil {
		return nil
	}
	return []ard.Option{ard.WithExecutor(exec)}
}

func datacubeOptions(exec services.Executor) []datacube.Option {
	if exec == nil {
		return nil
	}
	return []datacube.Option{datacube.WithExecutor(exec)}
}

func visualOptions(exec services.Executor) []visuals.Option {
	if exec == nil {
		return nil
	}
	return []visuals.Option{visuals.WithExecutor(exec)}
}

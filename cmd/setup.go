package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/stackback/stackback/internal/config"
	"github.com/stackback/stackback/internal/grouping"
	"github.com/stackback/stackback/internal/notify"
	"github.com/stackback/stackback/internal/run"
	"github.com/stackback/stackback/internal/service"
	"github.com/stackback/stackback/internal/store"
	"github.com/stackback/stackback/pkg/models"
)

// env is everything a command needs wired together: config, group
// registry, and a run.Runner with real store/service/notify backends.
type env struct {
	cfg      *config.ConfigManager
	registry *grouping.Registry
	runner   *run.Runner
	services *service.DockerController
	index    *store.Index
}

func newEnv() (*env, error) {
	cfg, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, err
	}

	registry, err := grouping.NewRegistry(cfg.GetConfig().Groups)
	if err != nil {
		return nil, fmt.Errorf("invalid group configuration: %w", err)
	}

	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}

	storeCfg := cfg.GetConfig().Store
	snapStore, err := store.NewResticStore(storeCfg.Repo, storeCfg.RemoteRepo, storeCfg.Password)
	if err != nil {
		return nil, err
	}

	services, err := service.NewDockerController()
	if err != nil {
		return nil, err
	}

	var emitter notify.Emitter = notify.NopEmitter{}
	if url := cfg.GetConfig().Notify.WebhookURL; url != "" {
		emitter = notify.NewWebhookEmitter(url, cfg.GetConfig().Notify.Timeout.Duration)
	}

	records := run.NewRecordStore(cfg.StateDir())
	if err := records.Load(); err != nil {
		services.Close()
		return nil, err
	}

	locks, err := run.NewLockManager(cfg.StateDir())
	if err != nil {
		services.Close()
		return nil, err
	}

	index := store.NewIndex(cfg.StateDir())
	if err := index.Load(); err != nil {
		services.Close()
		return nil, err
	}

	runner := run.NewRunner(snapStore, services, emitter, records, locks, index, cfg.GetConfig().Retention)
	runner.Logf = func(format string, args ...any) {
		fmt.Println(progressStyle.Render(fmt.Sprintf("  --> "+format, args...)))
	}

	return &env{
		cfg:      cfg,
		registry: registry,
		runner:   runner,
		services: services,
		index:    index,
	}, nil
}

func (e *env) Close() {
	if e.services != nil {
		e.services.Close()
	}
}

// reconcile sweeps up runs a dead process left behind before this
// invocation starts a new one.
func (e *env) reconcile(ctx context.Context) {
	reconciled, err := e.runner.Reconcile(ctx, func(name string) (models.ServiceGroup, error) {
		return e.registry.Lookup(name)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render(fmt.Sprintf("[warn]  reconciliation: %v", err)))
		return
	}
	for _, rec := range reconciled {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  reconciled interrupted %s run %s for %s", rec.Kind, rec.RunID, rec.GroupName)))
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("[error] %v", err)))
	os.Exit(exitFailed)
}

// findSnapshot resolves a run's snapshot id against the local index.
func findSnapshot(e *env, rec run.Record) *store.Snapshot {
	if rec.SnapshotID == "" {
		return nil
	}
	for _, snap := range e.index.List(rec.GroupName) {
		if snap.ID == rec.SnapshotID {
			return &snap
		}
	}
	return nil
}

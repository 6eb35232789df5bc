// Package runner wires the orchestrator's components together for the CLI.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/withObsrvr/stack-deploy-workflow/internal/awsclient"
	"github.com/withObsrvr/stack-deploy-workflow/internal/backup"
	"github.com/withObsrvr/stack-deploy-workflow/internal/cleanup"
	"github.com/withObsrvr/stack-deploy-workflow/internal/config"
	"github.com/withObsrvr/stack-deploy-workflow/internal/deploy"
	"github.com/withObsrvr/stack-deploy-workflow/internal/report"
	"github.com/withObsrvr/stack-deploy-workflow/internal/run"
	"github.com/withObsrvr/stack-deploy-workflow/pkg/checkpoint"
)

// Options configures one orchestrator invocation.
type Options struct {
	// Target is the deployment target, used as the stack name.
	Target string

	// ConfigFile is the deployment configuration document.
	ConfigFile string

	// StateDir holds the checkpoint, the backups, and the log file.
	StateDir string

	// ProjectDir contains the infra template and the widget sources.
	ProjectDir string

	// SeedDataDir holds documents staged for the bootstrap stage.
	SeedDataDir string

	// SetupCommand, when set, generates a missing configuration document.
	SetupCommand []string

	Verbose bool
}

// Runner owns the local state (log, checkpoint, backups) and builds the
// pipeline or the cleanup engine on demand.
type Runner struct {
	opts  Options
	rep   *report.Reporter
	store *checkpoint.Store
	bak   *backup.Manager
}

// New prepares the local state directory and opens the log.
func New(opts Options) (*Runner, error) {
	if opts.Target == "" {
		return nil, fmt.Errorf("deployment target cannot be empty")
	}
	if opts.StateDir == "" {
		opts.StateDir = ".deploystack"
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = "deploy-config.yaml"
	}
	if opts.SeedDataDir == "" {
		opts.SeedDataDir = filepath.Join(opts.ProjectDir, "data", "seed")
	}

	rep, err := report.New(filepath.Join(opts.StateDir, "deploy.log"), opts.Verbose)
	if err != nil {
		return nil, err
	}

	// The raw config document feeds the checkpoint's drift warning.
	var cfgForHash interface{}
	if raw, err := os.ReadFile(opts.ConfigFile); err == nil {
		cfgForHash = string(raw)
	}

	store, err := checkpoint.NewStore(opts.StateDir, opts.Target, cfgForHash)
	if err != nil {
		rep.Close()
		return nil, err
	}

	widgetAsset := filepath.Join(opts.ProjectDir, "widget", "dist", "widget.js")
	bak := backup.NewManager(filepath.Join(opts.StateDir, "backup"), rep, opts.ConfigFile, widgetAsset)

	return &Runner{opts: opts, rep: rep, store: store, bak: bak}, nil
}

// Close releases the log file.
func (r *Runner) Close() error {
	return r.rep.Close()
}

// LogPath points operators at the durable log in failure messages.
func (r *Runner) LogPath() string {
	return r.rep.Path()
}

// Deploy runs the full pipeline from the beginning.
func (r *Runner) Deploy(ctx context.Context) error {
	pipeline, err := r.buildPipeline(ctx)
	if err != nil {
		return err
	}
	return pipeline.Run(ctx, deploy.StagePrerequisites)
}

// Recover resumes from the persisted checkpoint. Returns
// deploy.ErrNoCheckpoint when there is nothing to resume; that is fatal to
// the recover invocation and checked before any cloud client is built.
func (r *Runner) Recover(ctx context.Context) error {
	if _, err := r.store.Load(); errors.Is(err, checkpoint.ErrNotFound) {
		return deploy.ErrNoCheckpoint
	}

	pipeline, err := r.buildPipeline(ctx)
	if err != nil {
		return err
	}
	return pipeline.Recover(ctx)
}

// Rollback deletes the target's storage resources, requests stack deletion,
// and restores the pre-deployment artifacts. Per-resource outcomes are in
// the report; the error covers infrastructure-level failures only.
func (r *Runner) Rollback(ctx context.Context) (*cleanup.Report, error) {
	engine, _, err := r.buildEngine(ctx)
	if err != nil {
		return nil, err
	}

	rpt := engine.Cleanup(ctx, r.opts.Target)

	if rpt.Failed() {
		r.rep.Warnf("Some resources could not be removed; leaving stack %s in place for a retry", r.opts.Target)
	} else if err := engine.DeleteStack(ctx, r.opts.Target); err != nil {
		r.rep.Warnf("Stack deletion request failed: %v", err)
	} else {
		r.rep.Infof("Requested deletion of stack %s", r.opts.Target)
	}

	// Restore failures are warnings; an in-progress rollback keeps going.
	if err := r.bak.Restore(); err != nil {
		r.rep.Warnf("%v", err)
	}

	if err := r.store.Clear(); err != nil {
		r.rep.Warnf("Could not clear checkpoint: %v", err)
	}

	return rpt, nil
}

// Status prints the checkpoint and, when reachable, the stack state.
func (r *Runner) Status(ctx context.Context) error {
	cp, err := r.store.Load()
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		fmt.Println("Checkpoint: none (no interrupted run)")
	case err != nil:
		fmt.Printf("Checkpoint: unreadable (%v)\n", err)
	default:
		fmt.Printf("Checkpoint: stage %q completed at %s\n", cp.Stage, cp.SavedAt.Format("2006-01-02 15:04:05"))
	}

	engine, _, err := r.buildEngine(ctx)
	if err != nil {
		fmt.Printf("Stack %s: unreachable (%v)\n", r.opts.Target, err)
		return nil
	}

	status, err := engine.StackStatus(ctx, r.opts.Target)
	if err != nil {
		fmt.Printf("Stack %s: not found\n", r.opts.Target)
		return nil
	}
	fmt.Printf("Stack %s: %s\n", r.opts.Target, status)
	return nil
}

// Clean removes the local state directory: checkpoint, backups, and log.
// Cloud resources are never touched.
func (r *Runner) Clean() error {
	r.rep.Close()
	if err := os.RemoveAll(r.opts.StateDir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", r.opts.StateDir, err)
	}
	fmt.Printf("Removed local state in %s\n", r.opts.StateDir)
	return nil
}

func (r *Runner) buildPipeline(ctx context.Context) (*deploy.Pipeline, error) {
	engine, clients, err := r.buildEngine(ctx)
	if err != nil {
		return nil, err
	}

	deps := &deploy.StageDeps{
		Runner:       &run.ExecRunner{Dir: r.opts.ProjectDir},
		Rep:          r.rep,
		Store:        r.store,
		Backup:       r.bak,
		Verifier:     engine,
		Resolver:     engine,
		Uploader:     clients,
		ConfigPath:   r.opts.ConfigFile,
		SetupCommand: r.opts.SetupCommand,
		ProjectDir:   r.opts.ProjectDir,
		SeedDataDir:  r.opts.SeedDataDir,
		State: &deploy.DeploymentState{
			Target: r.opts.Target,
			Region: r.resolveRegion(),
		},
	}

	return deploy.NewPipeline(deps), nil
}

func (r *Runner) buildEngine(ctx context.Context) (*cleanup.Engine, *awsclient.Clients, error) {
	clients, err := awsclient.New(ctx, r.resolveRegion())
	if err != nil {
		return nil, nil, err
	}
	engine := cleanup.NewEngine(clients.S3, clients.Vectors, clients.Stacks, r.rep)
	return engine, clients, nil
}

// resolveRegion prefers the environment, then the config document. An empty
// result lets the SDK fall back to its own default chain.
func (r *Runner) resolveRegion() string {
	if region := os.Getenv("AWS_REGION"); region != "" {
		return region
	}
	if region := os.Getenv("AWS_DEFAULT_REGION"); region != "" {
		return region
	}
	if cfg, err := config.Load(r.opts.ConfigFile); err == nil {
		return cfg.Region
	}
	return ""
}

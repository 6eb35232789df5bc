// Package deploy drives the checkpointed deployment pipeline: an ordered
// sequence of idempotent stages, each guarded by a precondition and each
// advancing the persisted checkpoint on success.
package deploy

import (
	"context"

	"github.com/withObsrvr/stack-deploy-workflow/internal/backup"
	"github.com/withObsrvr/stack-deploy-workflow/internal/report"
	"github.com/withObsrvr/stack-deploy-workflow/pkg/checkpoint"
)

// stageDef is one named, ordered unit of work.
type stageDef struct {
	id Stage

	// precondition reports why the stage cannot run yet; nil means ready.
	precondition func(ctx context.Context) *PreconditionError

	// remediate, when non-nil, is run once if the precondition fails, after
	// which the precondition is re-checked.
	remediate func(ctx context.Context) error

	action func(ctx context.Context) error
}

// Pipeline executes the stage catalogue in order, persisting a checkpoint
// after every completed stage.
type Pipeline struct {
	stages []stageDef
	store  *checkpoint.Store
	backup *backup.Manager
	rep    *report.Reporter
}

// NewPipeline assembles the pipeline over the given dependencies.
func NewPipeline(deps *StageDeps) *Pipeline {
	return &Pipeline{
		stages: buildStages(deps),
		store:  deps.Store,
		backup: deps.Backup,
		rep:    deps.Rep,
	}
}

// Run executes the pipeline starting at from. Pass StagePrerequisites (or
// StageUnknown) for a full run; full runs snapshot the mutable artifacts
// before any stage executes.
//
// Each stage's checkpoint is written only after the stage completes, so a
// crash between completion and checkpoint write re-runs the stage on
// recovery. Stages are therefore required to be safely re-runnable.
func (p *Pipeline) Run(ctx context.Context, from Stage) error {
	if from == StageUnknown {
		from = StagePrerequisites
	}

	if from == StagePrerequisites {
		if err := p.backup.Snapshot(); err != nil {
			return &StageFailure{Stage: StagePrerequisites, Cause: err}
		}
	} else {
		p.rep.Infof("Resuming pipeline from stage %q", from)
	}

	for _, stage := range p.stages {
		if stage.id < from {
			continue
		}

		p.rep.Infof("==> %s", stage.id.Label())

		if err := p.checkPrecondition(ctx, stage); err != nil {
			p.rep.Errorf("%v", err)
			return err
		}

		if err := stage.action(ctx); err != nil {
			failure := &StageFailure{Stage: stage.id, Cause: err}
			p.rep.Errorf("%v", failure)
			return failure
		}

		if stage.id == StageFinalize {
			// A completed run leaves no resume point behind.
			if err := p.store.Clear(); err != nil {
				p.rep.Warnf("Could not clear checkpoint: %v", err)
			}
		} else if err := p.store.Save(stage.id.String()); err != nil {
			return &StageFailure{Stage: stage.id, Cause: err}
		}

		p.rep.Successf("%s complete", stage.id.Label())
	}

	return nil
}

func (p *Pipeline) checkPrecondition(ctx context.Context, stage stageDef) error {
	if stage.precondition == nil {
		return nil
	}

	preErr := stage.precondition(ctx)
	if preErr == nil {
		return nil
	}

	if stage.remediate != nil {
		p.rep.Warnf("Precondition for %q not met (%s), attempting remediation", stage.id, preErr.Reason)
		if err := stage.remediate(ctx); err != nil {
			p.rep.Warnf("Remediation failed: %v", err)
		}
		if preErr = stage.precondition(ctx); preErr == nil {
			return nil
		}
	}

	return preErr
}

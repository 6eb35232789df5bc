package deploy

import (
	"context"
	"errors"

	"github.com/withObsrvr/stack-deploy-workflow/pkg/checkpoint"
)

// ResumeStage maps the last completed stage to the stage a recovery run
// re-enters at. The mapping is deliberately coarse and conservative: it
// prefers re-running cheap, idempotent work over skipping a stage whose
// side effects might be incomplete.
func ResumeStage(completed Stage) Stage {
	switch completed {
	case StagePrerequisites, StageEnvironment, StageDependencies:
		return StageEnvironment
	case StageValidateConfig:
		return StageProvision
	case StageProvision:
		return StageVerify
	case StageVerify, StageBootstrap, StageFinalize:
		return StageBootstrap
	default:
		// Unknown checkpoint: a full rerun is always safe given stage
		// idempotence.
		return StagePrerequisites
	}
}

// Recover reads the checkpoint and re-enters the pipeline at the mapped
// resume stage. Returns ErrNoCheckpoint when there is nothing to resume.
func (p *Pipeline) Recover(ctx context.Context) error {
	cp, err := p.store.Load()
	if errors.Is(err, checkpoint.ErrNotFound) {
		return ErrNoCheckpoint
	}
	if err != nil {
		// A corrupted checkpoint is treated like an unknown one: warn and
		// restart from the beginning rather than fail.
		p.rep.Warnf("Checkpoint is unreadable (%v); restarting from the beginning", err)
		return p.Run(ctx, StagePrerequisites)
	}

	completed := ParseStage(cp.Stage)
	if completed == StageUnknown {
		p.rep.Warnf("Checkpoint stage %q is not recognized; restarting from the beginning", cp.Stage)
	}

	resume := ResumeStage(completed)
	p.rep.Infof("Last completed stage: %q; resuming at %q", cp.Stage, resume)
	return p.Run(ctx, resume)
}

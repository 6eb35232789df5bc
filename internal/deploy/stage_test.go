package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStage_RoundTrip(t *testing.T) {
	for _, stage := range Stages() {
		assert.Equal(t, stage, ParseStage(stage.String()), "round trip for %s", stage)
	}
}

func TestParseStage_Unrecognized(t *testing.T) {
	for _, name := range []string{"", "step_4", "unknown", "Provision"} {
		assert.Equal(t, StageUnknown, ParseStage(name), "ParseStage(%q)", name)
	}
}

func TestResumeStage_TotalAndConservative(t *testing.T) {
	tests := []struct {
		completed Stage
		want      Stage
	}{
		{StagePrerequisites, StageEnvironment},
		{StageEnvironment, StageEnvironment},
		{StageDependencies, StageEnvironment},
		{StageValidateConfig, StageProvision},
		{StageProvision, StageVerify},
		{StageVerify, StageBootstrap},
		{StageBootstrap, StageBootstrap},
		{StageFinalize, StageBootstrap},
		{StageUnknown, StagePrerequisites},
	}

	for _, tt := range tests {
		t.Run(tt.completed.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ResumeStage(tt.completed))
		})
	}

	// The mapping never resumes after a stage that didn't complete.
	for _, stage := range Stages() {
		assert.LessOrEqual(t, int(ResumeStage(stage)), int(stage)+1,
			"resume point for %s must not skip unfinished work", stage)
	}
}

package deploy

// Stage identifies one ordered unit of the deployment pipeline. The set is
// closed: everything that consumes a stage identifier operates on this
// enumeration, so an out-of-range value can only enter the system through
// a persisted checkpoint, where parsing maps it to StageUnknown.
type Stage int

const (
	StageUnknown Stage = iota
	StagePrerequisites
	StageEnvironment
	StageDependencies
	StageValidateConfig
	StageProvision
	StageVerify
	StageBootstrap
	StageFinalize
)

var stageNames = map[Stage]string{
	StagePrerequisites:  "prerequisites",
	StageEnvironment:    "environment",
	StageDependencies:   "dependencies",
	StageValidateConfig: "validate-config",
	StageProvision:      "provision",
	StageVerify:         "verify",
	StageBootstrap:      "bootstrap",
	StageFinalize:       "finalize",
}

var stageLabels = map[Stage]string{
	StagePrerequisites:  "Validate prerequisites",
	StageEnvironment:    "Prepare execution environment",
	StageDependencies:   "Install dependencies",
	StageValidateConfig: "Validate configuration",
	StageProvision:      "Provision infrastructure",
	StageVerify:         "Verify provisioned resources",
	StageBootstrap:      "Bootstrap initial data",
	StageFinalize:       "Finalize deployment",
}

// String returns the stable identifier persisted in checkpoints.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Label returns the human-readable stage name used in progress output.
func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return "Unknown stage"
}

// ParseStage maps a persisted identifier back to its Stage. Unrecognized
// values map to StageUnknown; a checkpoint written by a different version
// of the pipeline must never be a fatal error.
func ParseStage(name string) Stage {
	for stage, n := range stageNames {
		if n == name {
			return stage
		}
	}
	return StageUnknown
}

// Stages returns the full pipeline order.
func Stages() []Stage {
	return []Stage{
		StagePrerequisites,
		StageEnvironment,
		StageDependencies,
		StageValidateConfig,
		StageProvision,
		StageVerify,
		StageBootstrap,
		StageFinalize,
	}
}

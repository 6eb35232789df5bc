package checkpoint

import (
	"errors"
	"time"
)

// Checkpoint records the last pipeline stage that completed successfully
// for one deployment target.
type Checkpoint struct {
	// Version of the checkpoint format (for future compatibility)
	Version string `json:"version"`

	// Target is the deployment target (stack name) the checkpoint belongs to
	Target string `json:"target"`

	// Stage is the identifier of the last successfully completed stage
	Stage string `json:"stage"`

	// Configuration hash to detect config changes between runs
	ConfigHash string `json:"config_hash"`

	SavedAt time.Time `json:"saved_at"`
}

// CheckpointVersion is the current checkpoint format version
const CheckpointVersion = "1.0"

// ErrNotFound is returned by Load when no checkpoint has been written yet.
var ErrNotFound = errors.New("no checkpoint found")

package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Store persists the deployment checkpoint for a single target.
//
// The checkpoint is a single JSON file holding the identifier of the last
// stage that completed successfully. It is written after every stage and
// removed when a run finishes, so a crash mid-run always leaves a resume
// point behind.
type Store struct {
	directory  string
	target     string
	configHash string
}

// NewStore creates a checkpoint store rooted at dir for the given target.
// The directory is created if it doesn't exist.
func NewStore(dir, target string, config interface{}) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory cannot be empty")
	}
	if target == "" {
		return nil, fmt.Errorf("deployment target cannot be empty")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &Store{
		directory:  dir,
		target:     target,
		configHash: calculateConfigHash(config),
	}, nil
}

// Path returns the location of the checkpoint file.
func (s *Store) Path() string {
	return filepath.Join(s.directory, fmt.Sprintf("checkpoint-%s.json", s.target))
}

// Save records stage as the last successfully completed stage.
//
// The write is atomic (write-then-rename) so an interrupted save can never
// leave a truncated checkpoint behind.
func (s *Store) Save(stage string) error {
	if stage == "" {
		return fmt.Errorf("stage identifier cannot be empty")
	}

	cp := Checkpoint{
		Version:    CheckpointVersion,
		Target:     s.target,
		Stage:      stage,
		ConfigHash: s.configHash,
		SavedAt:    time.Now(),
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if err := WriteAtomic(s.Path(), data); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	return nil
}

// Load reads the persisted checkpoint.
//
// Returns ErrNotFound when no checkpoint exists; this is the normal state
// before a first run and after a successful one, not a failure. A corrupted
// file is an error so the caller can decide between restart and abort.
func (s *Store) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint (possibly corrupted): %w", err)
	}

	if cp.Version == "" || cp.Stage == "" {
		return nil, fmt.Errorf("invalid checkpoint: missing required fields")
	}

	// Config drift between the failed run and this one is worth a warning,
	// but the checkpoint is still usable.
	if cp.ConfigHash != "" && cp.ConfigHash != s.configHash {
		log.Printf("[WARN] Configuration changed since checkpoint was written (checkpoint: %s, current: %s)",
			shortHash(cp.ConfigHash), shortHash(s.configHash))
	}

	return &cp, nil
}

// Clear removes the checkpoint. Clearing an absent checkpoint is a no-op.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

// calculateConfigHash computes a hash of the configuration for change detection
func calculateConfigHash(config interface{}) string {
	if config == nil {
		return "no-config"
	}

	data, err := json.Marshal(config)
	if err != nil {
		return "hash-error"
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// Package backup snapshots mutable deployment artifacts before risky
// pipeline stages and restores them on demand.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/withObsrvr/stack-deploy-workflow/internal/report"
)

// Manager owns the snapshot location. It only ever touches the artifacts it
// was constructed with; nothing outside that set is read or written.
type Manager struct {
	dir       string
	artifacts []string
	rep       *report.Reporter
}

// RestoreError reports the artifacts that could not be copied back. It is a
// warning-grade condition: restore keeps going past individual failures.
type RestoreError struct {
	Failed []string
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("failed to restore %d artifact(s): %v", len(e.Failed), e.Failed)
}

// NewManager tracks the given artifact paths, snapshotting into dir.
func NewManager(dir string, rep *report.Reporter, artifacts ...string) *Manager {
	return &Manager{dir: dir, artifacts: artifacts, rep: rep}
}

// Dir returns the snapshot location.
func (m *Manager) Dir() string {
	return m.dir
}

// Snapshot copies every tracked artifact that currently exists into the
// snapshot location. Calling it again overwrites the previous snapshot;
// artifacts that don't exist yet are skipped.
func (m *Manager) Snapshot() error {
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	count := 0
	for _, artifact := range m.artifacts {
		if _, err := os.Stat(artifact); os.IsNotExist(err) {
			m.rep.Debugf("skipping backup of %s: does not exist", artifact)
			continue
		}

		dst := filepath.Join(m.dir, filepath.Base(artifact))
		if err := copyFile(artifact, dst); err != nil {
			return fmt.Errorf("failed to back up %s: %w", artifact, err)
		}
		m.rep.Infof("Backed up %s", artifact)
		count++
	}

	m.rep.Successf("Backup snapshot complete (%d artifact(s))", count)
	return nil
}

// Restore copies every backed-up artifact back over its live counterpart.
// Artifacts that were never snapshotted are skipped rather than erroring;
// individual copy failures are collected into a RestoreError.
func (m *Manager) Restore() error {
	var failed []string

	for _, artifact := range m.artifacts {
		src := filepath.Join(m.dir, filepath.Base(artifact))
		if _, err := os.Stat(src); os.IsNotExist(err) {
			m.rep.Debugf("no snapshot for %s, skipping restore", artifact)
			continue
		}

		if err := copyFile(src, artifact); err != nil {
			m.rep.Warnf("Could not restore %s: %v", artifact, err)
			failed = append(failed, artifact)
			continue
		}
		m.rep.Infof("Restored %s", artifact)
	}

	if len(failed) > 0 {
		return &RestoreError{Failed: failed}
	}

	m.rep.Successf("Restore complete")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

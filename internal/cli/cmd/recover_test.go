package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setTestFlags points the package-level flag variables at a temp workspace
// and restores them when the test finishes.
func setTestFlags(t *testing.T) string {
	t.Helper()

	origState, origCfg, origTarget, origProject := stateDir, cfgFile, target, projectDir
	t.Cleanup(func() {
		stateDir, cfgFile, target, projectDir = origState, origCfg, origTarget, origProject
	})

	tmp := t.TempDir()
	stateDir = filepath.Join(tmp, "state")
	cfgFile = filepath.Join(tmp, "deploy-config.yaml")
	target = "chatbot-test"
	projectDir = tmp
	return tmp
}

func TestRecover_NoCheckpointExitsNonZero(t *testing.T) {
	setTestFlags(t)

	err := runRecover(recoverCmd, nil)
	require.Error(t, err, "recover with no checkpoint must exit non-zero")
	assert.Contains(t, err.Error(), "no checkpoint")
}

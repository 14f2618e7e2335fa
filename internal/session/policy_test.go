package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "session-sentinel/internal/common/errors"
)

func writePolicyFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadPolicyFile(t *testing.T) {
	path := writePolicyFile(t, `{"inactivity_timeout_seconds": 900, "warning_threshold_seconds": 120}`)

	policy, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, 900*time.Second, policy.InactivityTimeout)
	assert.Equal(t, 120*time.Second, policy.WarningThreshold)
}

func TestLoadPolicyFileMissing(t *testing.T) {
	_, err := LoadPolicyFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodePolicyInvalid))
}

func TestLoadPolicyFileRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":            `{nope`,
		"missing field":       `{"inactivity_timeout_seconds": 900}`,
		"unknown field":       `{"inactivity_timeout_seconds": 900, "warning_threshold_seconds": 120, "grace": 1}`,
		"timeout too small":   `{"inactivity_timeout_seconds": 30, "warning_threshold_seconds": 10}`,
		"threshold too small": `{"inactivity_timeout_seconds": 900, "warning_threshold_seconds": 5}`,
		"non-integer":         `{"inactivity_timeout_seconds": "900", "warning_threshold_seconds": 120}`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadPolicyFile(writePolicyFile(t, doc))
			assert.True(t, stderrors.IsCode(err, stderrors.ErrCodePolicyInvalid))
		})
	}
}

func TestLoadPolicyFileRejectsWarningAboveTimeout(t *testing.T) {
	// Schema-valid but semantically inverted: warning window wider than
	// the whole timeout.
	path := writePolicyFile(t, `{"inactivity_timeout_seconds": 120, "warning_threshold_seconds": 600}`)

	_, err := LoadPolicyFile(path)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodePolicyInvalid))
}

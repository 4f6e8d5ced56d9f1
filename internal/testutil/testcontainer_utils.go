package testutil

import (
	"testing"
)

// requireDocker skips container-backed tests in -short mode.
func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in -short mode")
	}
}

// skipOnStartError skips the calling test when a shared container could not
// be started, e.g. when no Docker daemon is reachable.
func skipOnStartError(t *testing.T, name string, err error) {
	t.Helper()
	if err != nil {
		t.Skipf("%s container unavailable: %v", name, err)
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// TestMain isolates tests from any labtohub.yaml or token variables on the
// developer's machine or CI runner.
func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "labtohub-config-tests-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	oldWD, _ := os.Getwd()

	_ = os.Chdir(tmp)
	_ = os.Setenv("HOME", tmp)
	_ = os.Setenv("USERPROFILE", tmp) // Windows compatibility
	_ = os.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg-config"))
	for _, k := range Keys {
		_ = os.Unsetenv(k.EnvVar)
		if k.AltEnvVar != "" {
			_ = os.Unsetenv(k.AltEnvVar)
		}
	}
	ResetForTesting()

	code := m.Run()

	ResetForTesting()
	_ = os.Chdir(oldWD)
	_ = os.RemoveAll(tmp)
	os.Exit(code)
}

package version

import (
	"strings"
	"testing"
)

func TestGetVersionInfo(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3"
	info := GetVersionInfo()
	if !strings.HasPrefix(info, "ChronoCapture v1.2.3 (built: ") {
		t.Errorf("Unexpected version info %q", info)
	}
	if GetVersion() != "1.2.3" {
		t.Errorf("Expected version 1.2.3, got %s", GetVersion())
	}
	if GetBuildTime() != BuildTime {
		t.Error("Unexpected build time")
	}
}

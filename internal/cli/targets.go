package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/willibrandon/ChronoCapture/pkg/instrumentation"
	"github.com/willibrandon/ChronoCapture/pkg/pathcode"
	"github.com/willibrandon/ChronoCapture/pkg/recorder"
)

// targetFiles is a registered target and its file layout.
type targetFiles struct {
	Path   string
	Layout recorder.Layout
}

// registeredTargets lists the targets known to the registry without
// assigning new codes. With no selectors every target is returned;
// otherwise each selector must match a registered path or code.
func registeredTargets(options instrumentation.Options, logger zerolog.Logger, selectors []string) ([]targetFiles, error) {
	if _, err := os.Stat(options.RegistryPath()); err != nil {
		return nil, fmt.Errorf("no path code registry at %s: %w", options.RegistryPath(), err)
	}
	registry, err := pathcode.Open(options.RegistryPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open path code registry: %w", err)
	}
	entries, err := registry.Entries()
	if err != nil {
		return nil, err
	}

	toFiles := func(e pathcode.Entry) targetFiles {
		return targetFiles{Path: e.Path, Layout: recorder.Layout{Dir: options.StorageDir, Code: e.Code}}
	}
	if len(selectors) == 0 {
		out := make([]targetFiles, 0, len(entries))
		for _, e := range entries {
			out = append(out, toFiles(e))
		}
		return out, nil
	}

	var out []targetFiles
	for _, sel := range selectors {
		found := false
		for _, e := range entries {
			if e.Path == sel || e.Code == sel {
				out = append(out, toFiles(e))
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no registered target matches %q", sel)
		}
	}
	return out, nil
}

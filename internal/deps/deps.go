// Package deps reports whether the external binaries a render needs exist.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement is one external binary.
type Requirement struct {
	Name     string
	Command  string
	Purpose  string
	Optional bool
}

// Status is the lookup result for a Requirement.
type Status struct {
	Requirement
	Path      string
	Available bool
	Detail    string
}

// MediaRequirements lists the binaries used for probing and encoding.
func MediaRequirements(ffmpeg, ffprobe string) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: ffmpeg, Purpose: "encodes frame sequences, wraps intro/outro, reflows shorts"},
		{Name: "FFprobe", Command: ffprobe, Purpose: "measures narration and clip durations"},
	}
}

// Check resolves every requirement on PATH.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		status := Status{Requirement: req}

		switch path, err := exec.LookPath(req.Command); {
		case req.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		default:
			status.Path = path
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// Require returns an error naming every missing non-optional binary.
func Require(requirements []Requirement) error {
	var missing []string
	for _, s := range Check(requirements) {
		if !s.Available && !s.Optional {
			missing = append(missing, fmt.Sprintf("%s (%s)", s.Name, s.Detail))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required binaries: %s", strings.Join(missing, ", "))
	}
	return nil
}

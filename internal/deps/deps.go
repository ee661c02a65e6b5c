// Package deps reports the availability of the external tools the pipeline
// shells out to.
package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"scribe/internal/config"
)

// Requirement defines an external tool the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	VersionArg  string
	Optional    bool
}

// Status reports the availability of one requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the configured engine binaries. The downloader is
// optional: runs without URL sources never invoke it.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Audio normalization and chunk extraction",
			VersionArg:  "-version",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Duration and stream probing",
			VersionArg:  "-version",
		},
		{
			Name:        "Whisper",
			Command:     cfg.WhisperBinary(),
			Description: "Transcription engine",
		},
		{
			Name:        "Downloader",
			Command:     cfg.DownloaderBinary(),
			Description: "URL source retrieval",
			VersionArg:  "--version",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
// When a version argument is known, the first line of its output lands in the
// detail field.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Detail = resolved
		if version := probeVersion(ctx, resolved, req.VersionArg); version != "" {
			status.Detail = version
		}
		results = append(results, status)
	}
	return results
}

// probeVersion runs the binary with its version flag and returns the first
// output line. Tools that misbehave on the flag just fall back to the path.
func probeVersion(ctx context.Context, binary, versionArg string) string {
	if versionArg == "" {
		return ""
	}
	output, err := exec.CommandContext(ctx, binary, versionArg).Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(line)
}

package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

const versionProbeTimeout = 2 * time.Second

// CheckFFmpeg resolves the configured FFmpeg binary and probes its version.
// FFmpeg is optional: when it is missing, merging is disabled and items
// needing an audio merge are kept as video-only artifacts, so the status is
// marked Optional rather than failing startup.
func CheckFFmpeg(binary string) Status {
	command := strings.TrimSpace(binary)
	if command == "" {
		command = "ffmpeg"
	}
	result := CheckBinaries([]Requirement{{
		Name:        "FFmpeg",
		Command:     command,
		Description: "Merges separated video and audio streams",
		Optional:    true,
	}})[0]
	if !result.Available {
		return result
	}
	if version := probeVersion(result.Command); version != "" {
		result.Detail = version
	}
	return result
}

// probeVersion asks the binary for its version banner. Failures are not
// errors; the binary may still merge fine.
func probeVersion(binary string) string {
	ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}

package deps

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// FreeSpace returns the free and total bytes of the filesystem containing
// path.
func FreeSpace(path string) (free, total uint64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	free = stat.Bavail * uint64(stat.Bsize)
	total = stat.Blocks * uint64(stat.Bsize)
	return free, total, nil
}

// CheckDownloadSpace verifies the filesystem holding the download directory
// has at least minFreeGiB available. A zero minimum disables the check and
// always passes.
func CheckDownloadSpace(path string, minFreeGiB int) Status {
	status := Status{
		Name:        "Download space",
		Command:     path,
		Description: "Free space on the download filesystem",
	}
	free, total, err := FreeSpace(path)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Detail = fmt.Sprintf("%s free of %s", humanize.Bytes(free), humanize.Bytes(total))
	required := uint64(minFreeGiB) * 1024 * 1024 * 1024
	if minFreeGiB > 0 && free < required {
		status.Detail = fmt.Sprintf("%s free, need at least %s", humanize.Bytes(free), humanize.Bytes(required))
		return status
	}
	status.Available = true
	return status
}

package session

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// StatfsDisk is the real DiskUsage implementation, backed by
// golang.org/x/sys/unix.Statfs -- the same syscall package the teacher uses
// for raw fd/socket work in inetdiag.go, here repurposed for the watchdog's
// free-space check (spec.md §4.9/§5).
type StatfsDisk struct{}

// FreeBytes reports bytes available to an unprivileged process on the
// filesystem backing path, per spec.md's "free disk" check.
func (StatfsDisk) FreeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("session: statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// LogFreeSpace renders a humanized free-space line for path (humanize.Bytes
// for size-y log fields, rendered through zerolog at the orchestration
// layer). Neither the watchdog nor the CLI calls it.
func LogFreeSpace(disk DiskUsage, path string) {
	free, err := disk.FreeBytes(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("session: could not stat free space")
		return
	}
	log.Info().Str("path", path).Str("free", humanize.Bytes(free)).Msg("session: free space")
}

// newReportFile creates (truncating) the NDJSON report file at path.
func newReportFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

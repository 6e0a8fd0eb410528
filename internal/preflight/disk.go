package preflight

import (
	"syscall"

	"github.com/Aman-CERP/rubricrank/internal/profiling"
)

// MinDiskSpaceBytes is the free space the snapshot and lexical index files
// need (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// CheckDiskSpace checks the free space on the filesystem holding path.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	const name = "disk_space"

	var fs syscall.Statfs_t
	if err := syscall.Statfs(path, &fs); err != nil {
		return fail(name, true, "cannot stat filesystem at %s: %v", path, err)
	}

	free := fs.Bavail * uint64(fs.Bsize)
	if free < MinDiskSpaceBytes {
		return fail(name, true, "%s free at %s, need %s",
			profiling.FormatBytes(free), path, profiling.FormatBytes(MinDiskSpaceBytes))
	}
	return pass(name, true, "%s free at %s", profiling.FormatBytes(free), path)
}

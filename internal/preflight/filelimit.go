package preflight

import "syscall"

// MinFileDescriptors is the lowest open file limit that leaves room for a
// lexical index per loaded corpus.
const MinFileDescriptors = 1024

// CheckFileDescriptors checks the soft RLIMIT_NOFILE.
func (c *Checker) CheckFileDescriptors() CheckResult {
	const name = "file_descriptors"

	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		return fail(name, true, "cannot read open file limit: %v", err)
	}
	if lim.Cur < MinFileDescriptors {
		r := fail(name, true, "limit %d is below %d", lim.Cur, MinFileDescriptors)
		r.Details = "Run 'ulimit -n 10240' to increase the limit"
		return r
	}
	return pass(name, true, "limit %d", lim.Cur)
}

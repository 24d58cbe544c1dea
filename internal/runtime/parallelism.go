package runtime

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
)

// minParallelism is the floor for the concurrency width P, per spec §4.4:
// "P = max(host parallelism hint, 4)".
const minParallelism = 4

// hostParallelismHint asks gopsutil for the number of logical cores, the
// same signal the teacher's command package gathers to size its own
// process handling, falling back to runtime.NumCPU when the host doesn't
// expose counters (e.g. restricted containers).
func hostParallelismHint() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// ParallelismWidth returns P for the current host.
func ParallelismWidth() int {
	if n := hostParallelismHint(); n > minParallelism {
		return n
	}
	return minParallelism
}

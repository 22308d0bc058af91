//go:build !windows

package preflight

import (
	"fmt"
	"syscall"
)

func (c *Checker) checkDiskSpace(root string) Result {
	r := Result{Name: "disk_space", Critical: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(root, &stat); err != nil {
		r.Status = StatusWarn
		r.Detail = fmt.Sprintf("could not stat filesystem: %v", err)
		r.Critical = false
		return r
	}

	free := stat.Bavail * uint64(stat.Bsize)
	r.Detail = fmt.Sprintf("%s free", formatBytes(free))
	if free < minDiskBytes {
		r.Status = StatusFail
		return r
	}
	r.Status = StatusPass
	return r
}

func formatBytes(n uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

//go:build windows

package state

import "os"

// FindProcess opens a handle on Windows and fails for exited processes
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}

//go:build !windows

package datastore

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func getDiskFreeSpace(dir string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, err
	}
	if st.Bsize <= 0 {
		return 0, fmt.Errorf("invalid block size %d", st.Bsize)
	}
	return st.Bavail * uint64(st.Bsize), nil
}

//go:build unix

package file

import (
	"fmt"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"golang.org/x/sys/unix"
)

func mmap(fm *FileManager, size int64) error {
	if fm.File == nil {
		return util.ErrFileManagerNil
	}
	if size <= 0 {
		return util.ErrInvalidSwapSize
	}
	if size > MaxMapSize {
		return util.ErrMaxMapSizeExceeded
	}

	if err := fm.File.Truncate(size); err != nil {
		return fmt.Errorf("truncate to %d: %w", size, err)
	}
	data, err := unix.Mmap(int(fm.File.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}
	fm.Data = data
	fm.Size = size
	return nil
}

// munmap unmaps a pointer from a file.
func munmap(fm *FileManager) error {
	if fm.File == nil {
		return util.ErrFileManagerNil
	}

	if fm.Data == nil {
		return nil
	}

	err := unix.Munmap(fm.Data)
	fm.Data = nil
	fm.Size = 0
	if err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

package file

import (
	"errors"
	"fmt"
	"os"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// MaxMapSize bounds the swap file mapping: every slot addressable by a
// swapped entry.
const MaxMapSize = int64(util.MaxSwapSlots) * util.PageSize

/**
* FileManager keeps the swap area in a regular file mapped into memory,
* slot i lives at offset i*PageSize.
**/
type FileManager struct {
	File  *os.File
	Data  []byte
	Size  int64
	slots int
}

func NewFileManager(path string, slots int) (*FileManager, error) {
	if slots <= 0 || slots > util.MaxSwapSlots {
		return nil, util.ErrInvalidSwapSize
	}

	size := int64(slots) * int64(util.PageSize)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	fm := &FileManager{File: f, slots: slots}

	if err := mmap(fm, size); err != nil {
		f.Close()
		return nil, fmt.Errorf("map file fail: %w", err)
	}

	return fm, nil
}

/* READ SLOT */
func (fm *FileManager) ReadPage(dst []byte, slot util.SlotIdx) error {
	if fm.Data == nil {
		return util.ErrStoreClosed
	}
	if err := checkSlot(dst, slot, fm.slots); err != nil {
		return fmt.Errorf("[ReadPage] slot %d: %w", slot, err)
	}

	offset := int64(slot) * int64(util.PageSize)
	copy(dst, fm.Data[offset:offset+util.PageSize])
	return nil
}

/* WRITE SLOT */
func (fm *FileManager) WritePage(src []byte, slot util.SlotIdx) error {
	if fm.Data == nil {
		return util.ErrStoreClosed
	}
	if err := checkSlot(src, slot, fm.slots); err != nil {
		return fmt.Errorf("[WritePage] slot %d: %w", slot, err)
	}

	offset := int64(slot) * int64(util.PageSize)
	copy(fm.Data[offset:offset+util.PageSize], src)
	return nil
}

// Slots returns the number of slots the file holds.
func (fm *FileManager) Slots() int {
	return fm.slots
}

/**
* CLOSE FUNCTION
**/
func (fm *FileManager) Close() error {
	if fm == nil {
		return nil // Idempotent
	}
	var err error
	if fm.File == nil {
		return nil
	}
	if e := munmap(fm); e != nil {
		err = errors.Join(err, fmt.Errorf("[close] unmap file fail: %w", e))
	}
	if e := fm.File.Sync(); e != nil {
		err = errors.Join(err, fmt.Errorf("sync file: %w", e))
	}
	if e := fm.File.Close(); e != nil {
		err = errors.Join(err, fmt.Errorf("close file: %w", e))
	}
	fm.File = nil
	return err
}

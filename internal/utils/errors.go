package util

import "errors"

var (
	ErrInvalidFrameCount  = errors.New("frame count must be positive")
	ErrInvalidKernelEnd   = errors.New("kernel end must be page aligned and below physical top")
	ErrInvalidSwapSize    = errors.New("swap slot count out of range")
	ErrInvalidRange       = errors.New("invalid physical range")
	ErrInvalidSlot        = errors.New("swap slot out of bounds")
	ErrInvalidPageBuffer  = errors.New("page buffer must be exactly one page")
	ErrInvalidBackend     = errors.New("unknown swap backend")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrFileManagerNil     = errors.New("file manager is nil")
	ErrMaxMapSizeExceeded = errors.New("swap size exceeds maximum mapping size")
	ErrSlotNotWritten     = errors.New("swap slot was never written")
	ErrStoreClosed        = errors.New("swap store is closed")
	ErrOutOfMemory        = errors.New("out of memory")
	ErrNoVictim           = errors.New("no evictable frame")
	ErrUnhandledTrap      = errors.New("unhandled trap")
	ErrNoProcess          = errors.New("no current process")
	ErrAlreadyMapped      = errors.New("virtual address already mapped")
)

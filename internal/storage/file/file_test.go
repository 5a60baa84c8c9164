package file

import (
	"os"
	"testing"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPage(seed byte) []byte {
	buf := make([]byte, util.PageSize)
	util.FillPattern(buf, seed)
	return buf
}

func TestNewFileManager(t *testing.T) {
	tests := []struct {
		name          string
		slots         int
		expectedError error
		shouldSucceed bool
	}{
		{
			name:          "Valid creation with 1 slot",
			slots:         1,
			shouldSucceed: true,
		},
		{
			name:          "Valid creation with 10 slots",
			slots:         10,
			shouldSucceed: true,
		},
		{
			name:          "Invalid negative slots",
			slots:         -1,
			expectedError: util.ErrInvalidSwapSize,
		},
		{
			name:          "Zero slots (edge case)",
			slots:         0,
			expectedError: util.ErrInvalidSwapSize,
		},
		{
			name:          "Large but valid slot count",
			slots:         1000,
			shouldSucceed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempFile, cleanup := util.CreateTempFile(t)
			defer cleanup()

			fm, err := NewFileManager(tempFile, tt.slots)

			if !tt.shouldSucceed {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, fm)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, fm)
			defer fm.Close()

			expectedSize := int64(tt.slots) * int64(util.PageSize)
			assert.Equal(t, expectedSize, fm.Size, "mapped size")
			assert.Equal(t, tt.slots, fm.Slots())

			info, err := os.Stat(tempFile)
			require.NoError(t, err, "swap file should exist")
			assert.Equal(t, expectedSize, info.Size(), "file truncated to the swap size")
		})
	}
}

// Every store must satisfy the same slot contract.
func TestStores(t *testing.T) {
	const slots = 8

	stores := map[string]func(t *testing.T) Filer{
		"Memory": func(t *testing.T) Filer {
			ms, err := NewMemStore(slots)
			require.NoError(t, err)
			return ms
		},
		"File": func(t *testing.T) Filer {
			path, _ := util.CreateTempFile(t)
			fm, err := NewFileManager(path, slots)
			require.NoError(t, err)
			return fm
		},
		"SQLite": func(t *testing.T) Filer {
			path, _ := util.CreateTempFile(t)
			s, err := NewSQLiteStore(path, slots)
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()

			t.Run("RoundTrip", func(t *testing.T) {
				for slot := util.SlotIdx(0); slot < slots; slot++ {
					require.NoError(t, store.WritePage(testPage(byte(slot)), slot), "write slot %d", slot)
				}
				for slot := util.SlotIdx(0); slot < slots; slot++ {
					dst := make([]byte, util.PageSize)
					require.NoError(t, store.ReadPage(dst, slot), "read slot %d", slot)
					assert.Equal(t, testPage(byte(slot)), dst, "slot %d contents", slot)
				}
			})

			t.Run("Overwrite", func(t *testing.T) {
				require.NoError(t, store.WritePage(testPage(1), 3))
				require.NoError(t, store.WritePage(testPage(99), 3))
				dst := make([]byte, util.PageSize)
				require.NoError(t, store.ReadPage(dst, 3))
				assert.Equal(t, testPage(99), dst)
			})

			t.Run("SlotOutOfBounds", func(t *testing.T) {
				assert.ErrorIs(t, store.WritePage(testPage(0), slots), util.ErrInvalidSlot)
				assert.ErrorIs(t, store.ReadPage(make([]byte, util.PageSize), slots), util.ErrInvalidSlot)
			})

			t.Run("ShortBuffer", func(t *testing.T) {
				assert.ErrorIs(t, store.WritePage(make([]byte, 10), 0), util.ErrInvalidPageBuffer)
				assert.ErrorIs(t, store.ReadPage(make([]byte, util.PageSize+1), 0), util.ErrInvalidPageBuffer)
			})
		})
	}
}

func TestUnwrittenSlot(t *testing.T) {
	ms, err := NewMemStore(4)
	require.NoError(t, err)
	assert.ErrorIs(t, ms.ReadPage(make([]byte, util.PageSize), 2), util.ErrSlotNotWritten)

	path, cleanup := util.CreateTempFile(t)
	defer cleanup()
	s, err := NewSQLiteStore(path, 4)
	require.NoError(t, err)
	defer s.Close()
	assert.ErrorIs(t, s.ReadPage(make([]byte, util.PageSize), 2), util.ErrSlotNotWritten)
}

func TestFileManagerPersists(t *testing.T) {
	path, cleanup := util.CreateTempFile(t)
	defer cleanup()

	fm, err := NewFileManager(path, 4)
	require.NoError(t, err)
	require.NoError(t, fm.WritePage(testPage(42), 2))
	require.NoError(t, fm.Close())
	assert.NoError(t, fm.Close(), "close is idempotent")
	assert.ErrorIs(t, fm.WritePage(testPage(0), 0), util.ErrStoreClosed)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testPage(42), raw[2*util.PageSize:3*util.PageSize], "slot 2 on disk")
}

func TestOpen(t *testing.T) {
	path, cleanup := util.CreateTempFile(t)
	defer cleanup()

	opts := util.DefaultOptions()
	opts.SwapSlots = 4
	opts.SwapPath = path

	for _, backend := range []string{util.BackendMemory, util.BackendFile, util.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			opts.SwapBackend = backend
			store, err := Open(opts)
			require.NoError(t, err)
			assert.NoError(t, store.WritePage(testPage(7), 1))
			assert.NoError(t, store.Close())
			os.Remove(path)
		})
	}

	opts.SwapBackend = "tape"
	_, err := Open(opts)
	assert.ErrorIs(t, err, util.ErrInvalidBackend)
}

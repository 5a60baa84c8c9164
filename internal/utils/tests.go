package util

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func CreateTempFile(t *testing.T) (string, func()) {
	t.Helper()
	tempDir := t.TempDir()
	tempFile := filepath.Join(tempDir, fmt.Sprintf("kswap-test-%d.swap", rand.Intn(100)+10))
	return tempFile, func() {
		os.Remove(tempFile)
	}
}

// FillPattern writes a recognizable per-page pattern into buf.
func FillPattern(buf []byte, seed byte) {
	for i := range buf {
		buf[i] = seed + byte(i%251)
	}
}

package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// flvHeader is an FLV file header (audio+video) followed by the zero
// PreviousTagSize that precedes the first tag.
var flvHeader = []byte{'F', 'L', 'V', 0x01, 0x05, 0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x00}

// WriteCapture creates a fake capture of exactly size bytes at path, creating
// parent directories. The data starts with an FLV header (truncated for tiny
// sizes) and is padded with filler bytes. A size <= 0 writes the bare header.
func WriteCapture(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = int64(len(flvHeader))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := make([]byte, size)
	n := copy(data, flvHeader)
	copy(data[n:], bytes.Repeat([]byte{0x42}, len(data)-n))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

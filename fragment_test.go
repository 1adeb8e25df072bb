package sqfsro

import "testing"

func TestSplitBlockSize(t *testing.T) {
	tests := []struct {
		raw            uint32
		wantSize       uint32
		wantCompressed bool
	}{
		{0x00001000, 0x1000, true},
		{0x01001000, 0x1000, false}, // bit 24 set -> stored uncompressed
		{0, 0, true},
	}

	for _, tt := range tests {
		size, compressed := splitBlockSize(tt.raw)
		if size != tt.wantSize || compressed != tt.wantCompressed {
			t.Errorf("splitBlockSize(0x%x) = (%d, %v), want (%d, %v)", tt.raw, size, compressed, tt.wantSize, tt.wantCompressed)
		}
	}
}

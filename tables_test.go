package sqfsro

import "testing"

// buildChunkChain assembles a sequence of uncompressed metadata chunks
// back-to-back, the on-disk shape countChunks/loadTable walk.
func buildChunkChain(payloads ...[]byte) []byte {
	var buf []byte

	for _, p := range payloads {
		header := uint16(len(p)) | 0x8000
		buf = append(buf, byte(header), byte(header>>8))
		buf = append(buf, p...)
	}

	return buf
}

func TestCountChunks(t *testing.T) {
	chain := buildChunkChain([]byte("abc"), []byte("defgh"), []byte(""))

	n, err := countChunks(chain)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if n != 3 {
		t.Errorf("countChunks = %d, want 3", n)
	}
}

func TestCountChunksTruncated(t *testing.T) {
	chain := buildChunkChain([]byte("abc"))
	chain = chain[:len(chain)-1]

	if _, err := countChunks(chain); err == nil {
		t.Error("expected error for truncated chunk chain, got nil")
	}
}

func TestTableCursor(t *testing.T) {
	tbl := &table{
		decoded: make([]byte, 100),
		positions: []chunkPos{
			{srcOffset: 0, decodedOffset: 0},
			{srcOffset: 50, decodedOffset: 30},
			{srcOffset: 120, decodedOffset: 70},
		},
	}

	tests := []struct {
		name       string
		ref        uint64
		wantCursor int64
		wantErr    bool
	}{
		{"first chunk, offset 5", 0<<16 | 5, 5, false},
		{"second chunk, offset 0", 50<<16 | 0, 30, false},
		{"third chunk, offset 10", 120<<16 | 10, 80, false},
		{"unknown chunk start", 99<<16 | 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tbl.cursor(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}

			if got != tt.wantCursor {
				t.Errorf("cursor = %d, want %d", got, tt.wantCursor)
			}
		})
	}
}

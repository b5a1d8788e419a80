package memimage

import (
	"bytes"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		load    uint16
		data    []byte
		wantErr bool
	}{
		{
			name: "typical music binary placement",
			load: 0x1000,
			data: []byte{0x4C, 0x30, 0x10, 0x4C, 0x80, 0x10},
		},
		{
			name: "fills the top of memory exactly",
			load: 0xFFFE,
			data: []byte{0xAA, 0xBB},
		},
		{
			name:    "overflows the address space",
			load:    0xFFFE,
			data:    []byte{0xAA, 0xBB, 0xCC},
			wantErr: true,
		},
		{
			name:    "empty image",
			load:    0x1000,
			data:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im, err := New(tt.load, tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("New(%#04x, %d bytes) succeeded, want error", tt.load, len(tt.data))
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if im.Load() != tt.load {
				t.Errorf("Load() = %#04x, want %#04x", im.Load(), tt.load)
			}
			if im.Size() != len(tt.data) {
				t.Errorf("Size() = %d, want %d", im.Size(), len(tt.data))
			}
		})
	}
}

func TestNewCopiesData(t *testing.T) {
	src := []byte{0x01, 0x02, 0x03}
	im, err := New(0x1000, src)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	src[0] = 0xFF
	if got, _ := im.Byte(0x1000); got != 0x01 {
		t.Errorf("Byte(0x1000) = %#02x after mutating source, want 0x01", got)
	}
}

func TestAccessors(t *testing.T) {
	// Eight bytes at $1000: two JMP vectors and filler.
	data := []byte{
		0x4C, 0x10, 0x12, // $1000  JMP $1210
		0x4C, 0x80, 0x13, // $1003  JMP $1380
		0x00, 0xFF, //       $1006
	}
	im, err := New(0x1000, data)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("byte inside", func(t *testing.T) {
		b, ok := im.Byte(0x1002)
		if !ok || b != 0x12 {
			t.Errorf("Byte(0x1002) = %#02x, %v; want 0x12, true", b, ok)
		}
	})

	t.Run("byte below load", func(t *testing.T) {
		if _, ok := im.Byte(0x0FFF); ok {
			t.Error("Byte(0x0FFF) ok = true, want false")
		}
	})

	t.Run("byte past end", func(t *testing.T) {
		if _, ok := im.Byte(0x1008); ok {
			t.Error("Byte(0x1008) ok = true, want false")
		}
	})

	t.Run("word is little endian", func(t *testing.T) {
		w, ok := im.Word(0x1001)
		if !ok || w != 0x1210 {
			t.Errorf("Word(0x1001) = %#04x, %v; want 0x1210, true", w, ok)
		}
	})

	t.Run("word straddling the end", func(t *testing.T) {
		if _, ok := im.Word(0x1007); ok {
			t.Error("Word(0x1007) ok = true, want false")
		}
	})

	t.Run("slice inside", func(t *testing.T) {
		s, ok := im.Slice(0x1003, 3)
		if !ok || !bytes.Equal(s, []byte{0x4C, 0x80, 0x13}) {
			t.Errorf("Slice(0x1003, 3) = % X, %v", s, ok)
		}
	})

	t.Run("slice overrunning the end", func(t *testing.T) {
		if _, ok := im.Slice(0x1006, 3); ok {
			t.Error("Slice(0x1006, 3) ok = true, want false")
		}
	})

	t.Run("contains", func(t *testing.T) {
		if !im.Contains(0x1000, 8) {
			t.Error("Contains(0x1000, 8) = false, want true")
		}
		if im.Contains(0x1000, 9) {
			t.Error("Contains(0x1000, 9) = true, want false")
		}
		if im.Contains(0x1000, -1) {
			t.Error("Contains(0x1000, -1) = true, want false")
		}
	})
}

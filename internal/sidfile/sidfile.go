// Package sidfile reads the PSID/RSID container format that wraps C64
// music binaries. Only the structural fields are validated; whether the
// wrapped program actually plays music is not this package's business.
// Reference: SID file format v1-v4 as distributed with HVSC.
package sidfile

import (
	"fmt"
	"os"
	"strings"

	"sidrip/internal/memimage"
)

// Header layout (all multi-byte fields big-endian):
//
//	+0x00  4  magic "PSID" or "RSID"
//	+0x04  2  version (1-4)
//	+0x06  2  dataOffset (0x76 for v1, 0x7C for v2+)
//	+0x08  2  loadAddress (0 = first two data bytes, little-endian)
//	+0x0A  2  initAddress
//	+0x0C  2  playAddress
//	+0x0E  2  songs
//	+0x10  2  startSong (1-based)
//	+0x12  4  speed bitfield
//	+0x16 32  name (NUL-padded)
//	+0x36 32  author
//	+0x56 32  released
//
// v2+ appends flags, start/page length and 2nd/3rd SID addresses; those
// are tolerated and skipped via dataOffset.
const (
	v1HeaderSize = 0x76
	v2HeaderSize = 0x7C
)

// File is a parsed SID container. Image holds the program bytes placed
// at their resolved load address.
type File struct {
	Magic      string
	Version    uint16
	DataOffset uint16
	LoadAddr   uint16
	InitAddr   uint16
	PlayAddr   uint16
	Songs      uint16
	StartSong  uint16
	Speed      uint32
	Name       string
	Author     string
	Released   string
	Image      *memimage.Image
}

// ParseError reports a malformed or truncated SID container. Offset is
// the file offset the problem was detected at.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sid header at offset 0x%02X: %s", e.Offset, e.Msg)
}

func parseErrorf(offset int, format string, args ...any) *ParseError {
	return &ParseError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// Parse reads a SID container from raw file bytes.
func Parse(data []byte) (*File, error) {
	if len(data) < v1HeaderSize {
		return nil, parseErrorf(0, "file of %d bytes is shorter than a v1 header", len(data))
	}

	magic := string(data[0:4])
	if magic != "PSID" && magic != "RSID" {
		return nil, parseErrorf(0, "bad magic %q (want PSID or RSID)", magic)
	}

	f := &File{
		Magic:      magic,
		Version:    beWord(data, 0x04),
		DataOffset: beWord(data, 0x06),
		LoadAddr:   beWord(data, 0x08),
		InitAddr:   beWord(data, 0x0A),
		PlayAddr:   beWord(data, 0x0C),
		Songs:      beWord(data, 0x0E),
		StartSong:  beWord(data, 0x10),
		Speed:      beLong(data, 0x12),
		Name:       fixedString(data[0x16:0x36]),
		Author:     fixedString(data[0x36:0x56]),
		Released:   fixedString(data[0x56:0x76]),
	}

	if f.Version < 1 || f.Version > 4 {
		return nil, parseErrorf(0x04, "unsupported version %d", f.Version)
	}
	if magic == "RSID" && f.Version < 2 {
		return nil, parseErrorf(0x04, "RSID requires version 2 or later, got %d", f.Version)
	}

	wantOffset := uint16(v1HeaderSize)
	if f.Version >= 2 {
		wantOffset = v2HeaderSize
	}
	if f.DataOffset != wantOffset {
		return nil, parseErrorf(0x06, "dataOffset 0x%02X does not match version %d (want 0x%02X)",
			f.DataOffset, f.Version, wantOffset)
	}
	if int(f.DataOffset) > len(data) {
		return nil, parseErrorf(0x06, "dataOffset 0x%02X beyond end of %d-byte file", f.DataOffset, len(data))
	}
	if f.Songs == 0 {
		return nil, parseErrorf(0x0E, "song count is zero")
	}
	if f.StartSong == 0 || f.StartSong > f.Songs {
		return nil, parseErrorf(0x10, "start song %d outside 1-%d", f.StartSong, f.Songs)
	}

	body := data[f.DataOffset:]
	if f.LoadAddr == 0 {
		// Load address prepended to the data, C64 .prg style.
		if len(body) < 2 {
			return nil, parseErrorf(int(f.DataOffset), "no room for embedded load address")
		}
		f.LoadAddr = uint16(body[0]) | uint16(body[1])<<8
		body = body[2:]
	} else if magic == "RSID" {
		return nil, parseErrorf(0x08, "RSID must embed its load address in the data")
	}

	if len(body) == 0 {
		return nil, parseErrorf(int(f.DataOffset), "container has no program data")
	}

	img, err := memimage.New(f.LoadAddr, body)
	if err != nil {
		return nil, parseErrorf(int(f.DataOffset), "program does not fit memory: %v", err)
	}
	f.Image = img

	return f, nil
}

// Load reads and parses the SID container at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func beWord(data []byte, off int) uint16 {
	return uint16(data[off])<<8 | uint16(data[off+1])
}

func beLong(data []byte, off int) uint32 {
	return uint32(data[off])<<24 | uint32(data[off+1])<<16 |
		uint32(data[off+2])<<8 | uint32(data[off+3])
}

func fixedString(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}

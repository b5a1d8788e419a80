// Package sf2 serializes recovered music data into the SF2 project
// layout: a fixed header and directory followed by data blocks at
// template-fixed offsets, each with a declared size the writer keeps
// consistent with actual content. Driver templates are data; adding a
// target driver variant is a new Template value, not new code.
package sf2

import "fmt"

// Magic tags an SF2 project buffer.
var Magic = [4]byte{'S', 'F', '2', '!'}

// FormatVersion is written into every emitted header.
const FormatVersion = 2

// Header layout (multi-byte fields little-endian, the C64 convention):
//
//	+0x00   4  magic "SF2!"
//	+0x04   2  format version
//	+0x06  16  driver tag (NUL-padded)
//	+0x16  32  title
//	+0x36  32  author
//	+0x56   2  payload checksum (16-bit byte sum over everything after
//	           the directory)
//	+0x58   1  block count
//	+0x59   5n block directory: kind, offset, declared size
const (
	offMagic     = 0x00
	offVersion   = 0x04
	offDriverTag = 0x06
	offTitle     = 0x16
	offAuthor    = 0x36
	offChecksum  = 0x56
	offBlockNum  = 0x58
	offDirectory = 0x59

	dirEntrySize = 5
	tagLen       = 16
	metaLen      = 32
)

// BlockKind identifies one data section of the target layout.
type BlockKind byte

const (
	BlockOrders BlockKind = iota + 1
	BlockSequences
	BlockInstruments
	BlockWave
	BlockPulse
	BlockFilter
)

var blockKindNames = map[BlockKind]string{
	BlockOrders:      "orders",
	BlockSequences:   "sequences",
	BlockInstruments: "instruments",
	BlockWave:        "wave",
	BlockPulse:       "pulse",
	BlockFilter:      "filter",
}

func (k BlockKind) String() string {
	if name, ok := blockKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("block(%d)", int(k))
}

// Block fixes one section's position and capacity inside the buffer.
type Block struct {
	Kind     BlockKind
	Offset   int
	Capacity int
}

// Template is the complete block layout of one target driver variant.
type Template struct {
	ID     string
	Name   string
	Size   int
	Blocks []Block
}

// Block returns the template's block of the given kind.
func (t *Template) Block(kind BlockKind) (Block, bool) {
	for _, b := range t.Blocks {
		if b.Kind == kind {
			return b, true
		}
	}
	return Block{}, false
}

// Templates lists every known target driver layout.
var Templates = []*Template{
	{
		// The default driver: roomy blocks, suits everything the
		// extractor recovers.
		ID:   "driver11",
		Name: "standard driver 11.02",
		Size: 0x1000,
		Blocks: []Block{
			{Kind: BlockOrders, Offset: 0x0100, Capacity: 0x0300},
			{Kind: BlockSequences, Offset: 0x0400, Capacity: 0x0800},
			{Kind: BlockInstruments, Offset: 0x0C00, Capacity: 0x0100},
			{Kind: BlockWave, Offset: 0x0D00, Capacity: 0x0100},
			{Kind: BlockPulse, Offset: 0x0E00, Capacity: 0x0100},
			{Kind: BlockFilter, Offset: 0x0F00, Capacity: 0x0100},
		},
	},
	{
		// A cut-down variant for size-constrained carts; sequences get
		// far less room.
		ID:   "driver11-tiny",
		Name: "compact driver 11.02",
		Size: 0x0800,
		Blocks: []Block{
			{Kind: BlockOrders, Offset: 0x0100, Capacity: 0x0100},
			{Kind: BlockSequences, Offset: 0x0200, Capacity: 0x0400},
			{Kind: BlockInstruments, Offset: 0x0600, Capacity: 0x0080},
			{Kind: BlockWave, Offset: 0x0680, Capacity: 0x0080},
			{Kind: BlockPulse, Offset: 0x0700, Capacity: 0x0080},
			{Kind: BlockFilter, Offset: 0x0780, Capacity: 0x0080},
		},
	},
}

// TemplateByID resolves a driver tag by exact identity.
func TemplateByID(id string) (*Template, bool) {
	for _, t := range Templates {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// DefaultTemplate is the layout used when the caller names none.
func DefaultTemplate() *Template { return Templates[0] }

func putWord(buf []byte, off int, v uint16) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
}

func word(buf []byte, off int) uint16 {
	return uint16(buf[off]) | uint16(buf[off+1])<<8
}

// checksum is the 16-bit byte sum over the payload area, everything
// past the directory.
func checksum(buf []byte, payloadStart int) uint16 {
	var sum uint16
	for _, b := range buf[payloadStart:] {
		sum += uint16(b)
	}
	return sum
}

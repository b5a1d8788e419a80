// Package memimage models the C64 address space a music binary occupies:
// a byte blob placed at a known load address inside the 64 KiB map.
// Images are immutable once constructed and safe to share between
// concurrent pipeline runs.
package memimage

import "fmt"

// AddressSpace is the size of the addressable C64 memory map.
const AddressSpace = 0x10000

// Image is a read-only view of a loaded binary. Addresses are absolute
// C64 addresses; accessors report whether the requested range falls
// inside the loaded region.
type Image struct {
	load uint16
	data []byte
}

// New copies data into a fresh Image loaded at the given address.
// The image must fit inside the 64 KiB address space.
func New(load uint16, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("memimage: empty image")
	}
	if int(load)+len(data) > AddressSpace {
		return nil, fmt.Errorf("memimage: image of %d bytes at $%04X exceeds the address space", len(data), load)
	}
	d := make([]byte, len(data))
	copy(d, data)
	return &Image{load: load, data: d}, nil
}

// Load returns the address the first byte of the image occupies.
func (im *Image) Load() uint16 { return im.load }

// Size returns the number of loaded bytes.
func (im *Image) Size() int { return len(im.data) }

// End returns the first address past the loaded region.
func (im *Image) End() int { return int(im.load) + len(im.data) }

// Contains reports whether n bytes starting at addr fall inside the
// loaded region.
func (im *Image) Contains(addr uint16, n int) bool {
	if n < 0 {
		return false
	}
	return int(addr) >= int(im.load) && int(addr)+n <= im.End()
}

// Byte returns the byte at addr.
func (im *Image) Byte(addr uint16) (byte, bool) {
	if !im.Contains(addr, 1) {
		return 0, false
	}
	return im.data[addr-im.load], true
}

// Word returns the little-endian 16-bit value at addr, the byte order
// the 6502 uses for pointers.
func (im *Image) Word(addr uint16) (uint16, bool) {
	if !im.Contains(addr, 2) {
		return 0, false
	}
	off := addr - im.load
	return uint16(im.data[off]) | uint16(im.data[off+1])<<8, true
}

// Slice returns n bytes starting at addr. The returned slice aliases the
// image and must not be modified.
func (im *Image) Slice(addr uint16, n int) ([]byte, bool) {
	if !im.Contains(addr, n) {
		return nil, false
	}
	off := int(addr) - int(im.load)
	return im.data[off : off+n], true
}

// Bytes returns the whole loaded region. The returned slice aliases the
// image and must not be modified.
func (im *Image) Bytes() []byte { return im.data }

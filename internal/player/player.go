// Package player identifies which music driver produced a binary and
// describes that driver's data layout. Every known driver family is one
// Profile in a compiled-in catalogue; identification matches byte
// signatures at fixed load-relative offsets and maps the result to a
// profile by exact tag, never by substring. A caller-supplied override
// always wins over the fingerprint and is never re-derived.
package player

import (
	"fmt"

	"sidrip/internal/memimage"
	"sidrip/internal/music"
)

// Encoding names the sequence event grammar a driver uses. The decoding
// tables themselves live with the extractor; profiles only carry the tag.
type Encoding string

const (
	// EncodingNewPlayer is the unpacked NewPlayer-style grammar: note
	// bytes, duration prefixes, instrument selects and two-byte commands.
	EncodingNewPlayer Encoding = "newplayer"

	// EncodingNewPlayerPacked is the same grammar behind a run-length
	// layer that must be expanded before event decoding.
	EncodingNewPlayerPacked Encoding = "newplayer-packed"

	// EncodingTracker is the GoatTracker-style grammar with a distinct
	// rest byte and wider command range.
	EncodingTracker Encoding = "tracker"
)

// Signature is a byte pattern expected at a fixed offset from the load
// address. A nil mask means every byte must match exactly; otherwise
// only the bits set in the mask are compared.
type Signature struct {
	Offset uint16
	Bytes  []byte
	Mask   []byte
}

// Match reports whether the signature is present in the image.
func (s Signature) Match(img *memimage.Image) bool {
	addr := img.Load() + s.Offset
	got, ok := img.Slice(addr, len(s.Bytes))
	if !ok {
		return false
	}
	for i, want := range s.Bytes {
		b := got[i]
		if s.Mask != nil {
			b &= s.Mask[i]
			want &= s.Mask[i]
		}
		if b != want {
			return false
		}
	}
	return true
}

// TableHint bounds the locator's search for one table kind. Window
// offsets are relative to the load address; WindowEnd of 0 means the
// end of the image.
type TableHint struct {
	WindowStart uint16
	WindowEnd   uint16
	EntrySize   int
	MaxEntries  int
	Terminator  byte
	ColumnMajor bool
}

// OrderHint says where the per-voice order-list pointers live: the word
// at load+PtrOffset[v] holds voice v's order-list address.
type OrderHint struct {
	PtrOffset [3]uint16
}

// SequenceHint says where the sequence address table lives: lo bytes at
// load+LoOffset, hi bytes at load+HiOffset, at most Max entries.
type SequenceHint struct {
	LoOffset uint16
	HiOffset uint16
	Max      int
}

// Profile describes one driver family's layout as data. Profiles are
// read-only; the catalogue owns them.
type Profile struct {
	// ID is the exact catalogue tag. Lookup is by full-string identity:
	// two families whose names share a substring are distinct profiles.
	ID   string
	Name string

	InstrumentSize int
	Encoding       Encoding
	Tables         map[music.TableKind]TableHint
	Orders         OrderHint
	Sequences      SequenceHint

	// Signatures fingerprint the family. All must match for the
	// profile to be identified.
	Signatures []Signature
}

// Unknown reports whether this is the catalogue's explicit unknown
// profile rather than an identified family.
func (p *Profile) Unknown() bool { return p.ID == UnknownID }

// Hint returns the search hint for one table kind. ok is false when the
// profile does not describe that kind at all.
func (p *Profile) Hint(kind music.TableKind) (TableHint, bool) {
	h, ok := p.Tables[kind]
	return h, ok
}

// UnknownPlayerError reports that no catalogue profile matched the
// image and no override was supplied.
type UnknownPlayerError struct {
	Load uint16
	Size int
}

func (e *UnknownPlayerError) Error() string {
	return fmt.Sprintf("no known player matches image of %d bytes at $%04X (use an explicit profile override)", e.Size, e.Load)
}

// Identify fingerprints the image against the catalogue. When override
// is non-empty it names a catalogue tag and always wins; the fingerprint
// is not even computed, so a bad fingerprint can never displace an
// explicit choice. Without an override, no signature match yields the
// unknown profile together with an UnknownPlayerError.
func Identify(img *memimage.Image, override string) (*Profile, error) {
	if override != "" {
		p, ok := Lookup(override)
		if !ok || p.Unknown() {
			return nil, fmt.Errorf("player: override %q is not in the catalogue", override)
		}
		return p, nil
	}

	for _, p := range Catalogue {
		if p.Unknown() || len(p.Signatures) == 0 {
			continue
		}
		matched := true
		for _, sig := range p.Signatures {
			if !sig.Match(img) {
				matched = false
				break
			}
		}
		if matched {
			return p, nil
		}
	}

	unknown, _ := Lookup(UnknownID)
	return unknown, &UnknownPlayerError{Load: img.Load(), Size: img.Size()}
}

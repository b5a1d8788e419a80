// Package sequence decodes the per-voice event streams and the order
// lists that reference them. Each driver family's event grammar is one
// Grammar value: byte ranges for notes, durations, instrument selects
// and commands, plus the rest/tie/end markers. Decoding never guesses;
// a byte outside every range of the active grammar fails that sequence
// with its address and value, and the other sequences carry on.
package sequence

import (
	"fmt"

	"sidrip/internal/memimage"
	"sidrip/internal/music"
	"sidrip/internal/player"
)

// maxStream bounds one sequence's raw byte length. Real sequences are
// well under this; hitting the bound means the end marker is missing.
const maxStream = 4096

// maxOrderEntries bounds one order list, same reasoning.
const maxOrderEntries = 512

// DecodeError reports a byte that fits no category of the active
// grammar, or a stream that runs out of image before its end marker.
type DecodeError struct {
	Addr uint16
	Byte byte
	Msg  string
}

func (e *DecodeError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("at $%04X: %s", e.Addr, e.Msg)
	}
	return fmt.Sprintf("undecodable event byte $%02X at $%04X", e.Byte, e.Addr)
}

// Grammar is one family's event encoding as data. Ranges are inclusive
// and must not overlap; a range with Lo > Hi is absent from the
// grammar. RunLo of zero means the stream is unpacked.
type Grammar struct {
	ID player.Encoding

	NoteLo, NoteHi byte
	DurLo, DurHi   byte
	InstLo, InstHi byte
	CmdLo, CmdHi   byte
	Rest           byte
	Tie            byte
	End            byte

	// RunLo..RunHi are run-length control bytes: RunLo|n followed by a
	// value byte expands to n+2 copies of that value, expanded before
	// event decoding.
	RunLo, RunHi byte
}

// Grammars maps every encoding tag a profile can carry to its grammar.
// Extending a family is a data addition here.
var Grammars = map[player.Encoding]Grammar{
	player.EncodingNewPlayer: {
		ID:     player.EncodingNewPlayer,
		NoteLo: 0x00, NoteHi: 0x5F,
		DurLo: 0x60, DurHi: 0x7F,
		InstLo: 0x80, InstHi: 0x9F,
		CmdLo: 0xA0, CmdHi: 0xBF,
		Rest: 0xC0,
		Tie:  0xC1,
		End:  0xFF,
	},
	player.EncodingNewPlayerPacked: {
		ID:     player.EncodingNewPlayerPacked,
		NoteLo: 0x00, NoteHi: 0x5F,
		DurLo: 0x60, DurHi: 0x7F,
		InstLo: 0x80, InstHi: 0x9F,
		CmdLo: 0xA0, CmdHi: 0xBF,
		Rest: 0xC0,
		Tie:  0xC1,
		End:  0xFF,
		// 0xE0..0xFE carry the run layer; 0xFF stays the end marker.
		RunLo: 0xE0, RunHi: 0xFE,
	},
	player.EncodingTracker: {
		ID:     player.EncodingTracker,
		NoteLo: 0x00, NoteHi: 0x5F,
		Rest:   0x60,
		Tie:    0x61,
		InstLo: 0x68, InstHi: 0xA7,
		CmdLo: 0xA8, CmdHi: 0xCF,
		DurLo: 0xD0, DurHi: 0xEF,
		End:   0xFF,
	},
}

// stream is a raw sequence byte stream with the source address of
// every byte, so errors in expanded packed data still name the image
// address the offending byte came from.
type stream struct {
	bytes []byte
	addrs []uint16
}

// readStream collects one sequence's bytes from addr up to and
// excluding the end marker, expanding run-length controls when the
// grammar has them.
func readStream(img *memimage.Image, g Grammar, addr uint16) (*stream, error) {
	s := &stream{}
	a := addr
	for len(s.bytes) < maxStream {
		b, ok := img.Byte(a)
		if !ok {
			return nil, &DecodeError{Addr: a, Msg: "sequence runs off the end of the image"}
		}
		if b == g.End {
			return s, nil
		}
		if g.RunLo != 0 && b >= g.RunLo && b <= g.RunHi {
			v, ok := img.Byte(a + 1)
			if !ok {
				return nil, &DecodeError{Addr: a, Byte: b, Msg: "run control byte without a value byte"}
			}
			n := int(b-g.RunLo) + 2
			for i := 0; i < n; i++ {
				s.bytes = append(s.bytes, v)
				s.addrs = append(s.addrs, a+1)
			}
			a += 2
			continue
		}
		s.bytes = append(s.bytes, b)
		s.addrs = append(s.addrs, a)
		a++
	}
	return nil, &DecodeError{Addr: addr, Msg: fmt.Sprintf("no end marker within %d bytes", maxStream)}
}

// Decode decodes the sequence starting at addr using the profile's
// grammar.
func Decode(img *memimage.Image, profile *player.Profile, index int, addr uint16) (music.Sequence, error) {
	g, ok := Grammars[profile.Encoding]
	if !ok {
		return music.Sequence{}, fmt.Errorf("profile %q has no grammar for encoding %q", profile.ID, profile.Encoding)
	}

	s, err := readStream(img, g, addr)
	if err != nil {
		return music.Sequence{}, err
	}

	seq := music.Sequence{Index: index, Addr: addr}
	for i := 0; i < len(s.bytes); i++ {
		b := s.bytes[i]
		switch {
		case b == g.Rest:
			seq.Events = append(seq.Events, music.Event{Kind: music.EvRest})
		case b == g.Tie:
			seq.Events = append(seq.Events, music.Event{Kind: music.EvTie})
		case b >= g.NoteLo && b <= g.NoteHi:
			seq.Events = append(seq.Events, music.Event{Kind: music.EvNote, Value: b - g.NoteLo})
		case g.DurLo <= g.DurHi && b >= g.DurLo && b <= g.DurHi:
			seq.Events = append(seq.Events, music.Event{Kind: music.EvDuration, Value: b - g.DurLo})
		case g.InstLo <= g.InstHi && b >= g.InstLo && b <= g.InstHi:
			seq.Events = append(seq.Events, music.Event{Kind: music.EvInstrument, Value: b - g.InstLo})
		case g.CmdLo <= g.CmdHi && b >= g.CmdLo && b <= g.CmdHi:
			// Commands carry one operand byte.
			if i+1 >= len(s.bytes) {
				return music.Sequence{}, &DecodeError{Addr: s.addrs[i], Byte: b, Msg: "command byte without an operand"}
			}
			seq.Events = append(seq.Events, music.Event{Kind: music.EvCommand, Value: b - g.CmdLo, Arg: s.bytes[i+1]})
			i++
		default:
			return music.Sequence{}, &DecodeError{Addr: s.addrs[i], Byte: b}
		}
	}
	return seq, nil
}

// Order list markers shared by every known family: values below the
// transpose range select a sequence, $80..$BF set the transpose
// relative to $A0, and $FF ends the list with the restart entry index
// in the following byte.
const (
	orderTransposeLo   = 0x80
	orderTransposeHi   = 0xBF
	orderTransposeZero = 0xA0
	orderEnd           = 0xFF
)

// DecodeOrderList decodes one voice's order list at addr. The current
// transpose applies to every following sequence reference until
// changed.
func DecodeOrderList(img *memimage.Image, voice int, addr uint16) (music.OrderList, error) {
	ol := music.OrderList{Voice: voice, Addr: addr}
	var transpose int8
	a := addr
	for n := 0; n < maxOrderEntries; n++ {
		b, ok := img.Byte(a)
		if !ok {
			return ol, &DecodeError{Addr: a, Msg: "order list runs off the end of the image"}
		}
		switch {
		case b == orderEnd:
			r, ok := img.Byte(a + 1)
			if !ok || int(r) > len(ol.Entries) {
				return ol, &DecodeError{Addr: a + 1, Byte: r, Msg: "restart index out of range"}
			}
			ol.Restart = int(r)
			return ol, nil
		case b >= orderTransposeLo && b <= orderTransposeHi:
			transpose = int8(int(b) - orderTransposeZero)
			a++
		case b < orderTransposeLo:
			ol.Entries = append(ol.Entries, music.OrderEntry{Transpose: transpose, Sequence: int(b)})
			a++
		default:
			return ol, &DecodeError{Addr: a, Byte: b}
		}
	}
	return ol, &DecodeError{Addr: addr, Msg: fmt.Sprintf("no end marker within %d entries", maxOrderEntries)}
}

// SequenceAddr resolves sequence i's address through the profile's
// lo/hi pointer tables.
func SequenceAddr(img *memimage.Image, profile *player.Profile, i int) (uint16, bool) {
	if i < 0 || i >= profile.Sequences.Max {
		return 0, false
	}
	lo, ok1 := img.Byte(img.Load() + profile.Sequences.LoOffset + uint16(i))
	hi, ok2 := img.Byte(img.Load() + profile.Sequences.HiOffset + uint16(i))
	if !ok1 || !ok2 {
		return 0, false
	}
	return uint16(lo) | uint16(hi)<<8, true
}

// ExtractAll decodes the three order lists and every sequence they
// reach, appending results and per-entity failures to data. A failed
// voice or sequence never stops the rest.
func ExtractAll(img *memimage.Image, profile *player.Profile, data *music.Data) {
	for voice := 0; voice < 3; voice++ {
		ptrAddr := img.Load() + profile.Orders.PtrOffset[voice]
		addr, ok := img.Word(ptrAddr)
		if !ok {
			data.AddProblem(fmt.Sprintf("order list voice %d", voice),
				fmt.Errorf("pointer at $%04X outside the image", ptrAddr))
			continue
		}
		ol, err := DecodeOrderList(img, voice, addr)
		if err != nil {
			data.AddProblem(fmt.Sprintf("order list voice %d", voice), err)
			continue
		}
		data.Orders = append(data.Orders, ol)
	}

	// Only sequences reachable from an order list count as used; the
	// rest is driver code or garbage and is not decoded.
	used := data.UsedSequences()
	for i := 0; i < profile.Sequences.Max; i++ {
		if !used[i] {
			continue
		}
		addr, ok := SequenceAddr(img, profile, i)
		if !ok {
			data.AddProblem(fmt.Sprintf("sequence %d", i),
				fmt.Errorf("address table entry %d outside the image", i))
			continue
		}
		seq, err := Decode(img, profile, i, addr)
		if err != nil {
			data.AddProblem(fmt.Sprintf("sequence %d", i), err)
			continue
		}
		data.Sequences = append(data.Sequences, seq)
	}
}

package sf2

import (
	"fmt"

	"sidrip/internal/music"
)

// Native sequence event encoding inside the sequences block. The
// ranges mirror the NewPlayer grammar the drivers themselves use, so
// entities the format supports natively survive a round trip without
// re-interpretation.
const (
	evNoteBase = 0x00
	evDurBase  = 0x60
	evInstBase = 0x80
	evCmdBase  = 0xA0
	evRest     = 0xC0
	evTie      = 0xC1
	evEnd      = 0xFF
)

// WriteError reports a component whose encoding exceeds its target
// block's capacity. The block is left unwritten; truncating silently
// would corrupt the project file.
type WriteError struct {
	Block    BlockKind
	Need     int
	Capacity int
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s block needs %d bytes, capacity is %d", e.Block, e.Need, e.Capacity)
}

// Validation is the structural verdict on an emitted buffer. A buffer
// with errors is still handed back for debugging but must never be
// passed off as a conformant project file.
type Validation struct {
	Conformant bool
	Errors     []error
}

func (v *Validation) fail(err error) {
	v.Conformant = false
	v.Errors = append(v.Errors, err)
}

// Meta is the header metadata carried over from the source container.
type Meta struct {
	Title  string
	Author string
}

// Transcode serializes the aggregate into the template's block layout
// and validates the result. The buffer is always returned, conformant
// or not; the validation verdict says which.
func Transcode(data *music.Data, tpl *Template, meta Meta) ([]byte, Validation) {
	buf := make([]byte, tpl.Size)
	v := Validation{Conformant: true}

	copy(buf[offMagic:], Magic[:])
	putWord(buf, offVersion, FormatVersion)
	putString(buf, offDriverTag, tagLen, tpl.ID)
	putString(buf, offTitle, metaLen, meta.Title)
	putString(buf, offAuthor, metaLen, meta.Author)
	buf[offBlockNum] = byte(len(tpl.Blocks))

	for i, blk := range tpl.Blocks {
		payload := encodeBlock(data, blk.Kind)
		declared := len(payload)
		if declared > blk.Capacity {
			v.fail(&WriteError{Block: blk.Kind, Need: declared, Capacity: blk.Capacity})
			declared = 0
		} else {
			copy(buf[blk.Offset:], payload)
		}

		dir := offDirectory + i*dirEntrySize
		buf[dir] = byte(blk.Kind)
		putWord(buf, dir+1, uint16(blk.Offset))
		putWord(buf, dir+3, uint16(declared))
	}

	payloadStart := offDirectory + len(tpl.Blocks)*dirEntrySize
	putWord(buf, offChecksum, checksum(buf, payloadStart))

	// Structural pass over the finished buffer: declared sizes must
	// match what the decoders actually consume, and the checksum must
	// verify. The writer just produced all of it; this catches writer
	// bugs before anyone trusts the file.
	for _, err := range Validate(buf) {
		v.fail(err)
	}
	return buf, v
}

// Validate re-reads an emitted buffer and returns every structural
// inconsistency: bad magic or version, directory entries out of
// bounds, declared sizes that do not match their content, or a
// checksum mismatch.
func Validate(buf []byte) []error {
	var errs []error

	hdr, dirEnd, err := parseHeader(buf)
	if err != nil {
		return []error{err}
	}

	for _, ent := range hdr.entries {
		if ent.offset+ent.size > len(buf) {
			errs = append(errs, fmt.Errorf("%s block at 0x%04X size %d runs past the %d-byte buffer",
				ent.kind, ent.offset, ent.size, len(buf)))
			continue
		}
		if ent.size == 0 {
			continue
		}
		consumed, err := decodeLen(ent.kind, buf[ent.offset:ent.offset+ent.size])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s block: %w", ent.kind, err))
			continue
		}
		if consumed != ent.size {
			errs = append(errs, fmt.Errorf("%s block declares %d bytes but holds %d", ent.kind, ent.size, consumed))
		}
	}

	if got, want := checksum(buf, dirEnd), word(buf, offChecksum); got != want {
		errs = append(errs, fmt.Errorf("checksum 0x%04X does not match payload sum 0x%04X", want, got))
	}
	return errs
}

func putString(buf []byte, off, n int, s string) {
	if len(s) > n {
		s = s[:n]
	}
	copy(buf[off:off+n], s)
}

func encodeBlock(data *music.Data, kind BlockKind) []byte {
	switch kind {
	case BlockOrders:
		return encodeOrders(data.Orders)
	case BlockSequences:
		return encodeSequences(data.Sequences)
	case BlockInstruments:
		return encodeInstruments(data.Instruments)
	case BlockWave:
		return encodeTable(data.Table(music.TableWave))
	case BlockPulse:
		return encodeTable(data.Table(music.TablePulse))
	case BlockFilter:
		return encodeTable(data.Table(music.TableFilter))
	}
	return nil
}

// encodeOrders: list count, then per list voice, restart, entry count
// and (transpose, sequence) pairs.
func encodeOrders(orders []music.OrderList) []byte {
	out := []byte{byte(len(orders))}
	for _, ol := range orders {
		out = append(out, byte(ol.Voice), byte(ol.Restart), byte(len(ol.Entries)))
		for _, e := range ol.Entries {
			out = append(out, byte(e.Transpose), byte(e.Sequence))
		}
	}
	return out
}

// encodeSequences: sequence count, then per sequence its index and the
// event stream in the native encoding, end marker included.
func encodeSequences(seqs []music.Sequence) []byte {
	out := []byte{byte(len(seqs))}
	for _, s := range seqs {
		out = append(out, byte(s.Index))
		for _, e := range s.Events {
			switch e.Kind {
			case music.EvNote:
				out = append(out, evNoteBase+e.Value)
			case music.EvDuration:
				out = append(out, evDurBase+e.Value)
			case music.EvInstrument:
				out = append(out, evInstBase+e.Value)
			case music.EvCommand:
				out = append(out, evCmdBase+e.Value, e.Arg)
			case music.EvRest:
				out = append(out, evRest)
			case music.EvTie:
				out = append(out, evTie)
			}
		}
		out = append(out, evEnd)
	}
	return out
}

// encodeInstruments: count, then fixed 8-byte records.
func encodeInstruments(insts []music.Instrument) []byte {
	out := []byte{byte(len(insts))}
	for _, in := range insts {
		out = append(out,
			in.AD, in.SR,
			in.Wave, in.Pulse, in.Filter,
			byte(in.PulseWidth), byte(in.PulseWidth>>8),
			in.Flags)
	}
	return out
}

// encodeTable: entry size, entry count, then the raw rows. Rows pass
// through byte-identical; the table kinds the format supports natively
// are never re-encoded.
func encodeTable(t *music.Table) []byte {
	if t == nil {
		return []byte{0, 0}
	}
	out := []byte{byte(t.Desc.EntrySize), byte(len(t.Rows))}
	for _, row := range t.Rows {
		out = append(out, row...)
	}
	return out
}

package sf2

import (
	"bytes"
	"fmt"
	"strings"

	"sidrip/internal/music"
)

type dirEntry struct {
	kind   BlockKind
	offset int
	size   int
}

type header struct {
	version uint16
	driver  string
	title   string
	author  string
	entries []dirEntry
}

func parseHeader(buf []byte) (*header, int, error) {
	if len(buf) < offDirectory {
		return nil, 0, fmt.Errorf("buffer of %d bytes is shorter than a header", len(buf))
	}
	if !bytes.Equal(buf[offMagic:offMagic+4], Magic[:]) {
		return nil, 0, fmt.Errorf("bad magic % X", buf[offMagic:offMagic+4])
	}
	h := &header{
		version: word(buf, offVersion),
		driver:  cstring(buf[offDriverTag : offDriverTag+tagLen]),
		title:   cstring(buf[offTitle : offTitle+metaLen]),
		author:  cstring(buf[offAuthor : offAuthor+metaLen]),
	}
	if h.version != FormatVersion {
		return nil, 0, fmt.Errorf("unsupported format version %d", h.version)
	}

	n := int(buf[offBlockNum])
	dirEnd := offDirectory + n*dirEntrySize
	if dirEnd > len(buf) {
		return nil, 0, fmt.Errorf("directory of %d entries runs past the buffer", n)
	}
	for i := 0; i < n; i++ {
		dir := offDirectory + i*dirEntrySize
		h.entries = append(h.entries, dirEntry{
			kind:   BlockKind(buf[dir]),
			offset: int(word(buf, dir+1)),
			size:   int(word(buf, dir+3)),
		})
	}
	return h, dirEnd, nil
}

// ReadData decodes an SF2 buffer back into the aggregate. The reader
// exists for round-trip verification; it accepts exactly what
// Transcode emits.
func ReadData(buf []byte) (*music.Data, error) {
	hdr, _, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}

	data := music.NewData(hdr.driver)
	for _, ent := range hdr.entries {
		if ent.size == 0 {
			continue
		}
		if ent.offset+ent.size > len(buf) {
			return nil, fmt.Errorf("%s block at 0x%04X size %d runs past the buffer", ent.kind, ent.offset, ent.size)
		}
		payload := buf[ent.offset : ent.offset+ent.size]
		switch ent.kind {
		case BlockOrders:
			orders, _, err := decodeOrders(payload)
			if err != nil {
				return nil, fmt.Errorf("%s block: %w", ent.kind, err)
			}
			data.Orders = orders
		case BlockSequences:
			seqs, _, err := decodeSequences(payload)
			if err != nil {
				return nil, fmt.Errorf("%s block: %w", ent.kind, err)
			}
			data.Sequences = seqs
		case BlockInstruments:
			insts, _, err := decodeInstruments(payload)
			if err != nil {
				return nil, fmt.Errorf("%s block: %w", ent.kind, err)
			}
			data.Instruments = insts
		case BlockWave, BlockPulse, BlockFilter:
			table, _, err := decodeTable(payload, tableKind(ent.kind))
			if err != nil {
				return nil, fmt.Errorf("%s block: %w", ent.kind, err)
			}
			if table != nil {
				data.Tables[table.Desc.Kind] = table
			}
		}
	}
	return data, nil
}

// decodeLen reports how many payload bytes a block's content actually
// occupies, for the structural validation pass.
func decodeLen(kind BlockKind, payload []byte) (int, error) {
	switch kind {
	case BlockOrders:
		_, n, err := decodeOrders(payload)
		return n, err
	case BlockSequences:
		_, n, err := decodeSequences(payload)
		return n, err
	case BlockInstruments:
		_, n, err := decodeInstruments(payload)
		return n, err
	case BlockWave, BlockPulse, BlockFilter:
		_, n, err := decodeTable(payload, tableKind(kind))
		return n, err
	}
	return 0, fmt.Errorf("unknown block kind %d", kind)
}

func tableKind(b BlockKind) music.TableKind {
	switch b {
	case BlockPulse:
		return music.TablePulse
	case BlockFilter:
		return music.TableFilter
	default:
		return music.TableWave
	}
}

func decodeOrders(b []byte) ([]music.OrderList, int, error) {
	if len(b) < 1 {
		return nil, 0, fmt.Errorf("empty orders payload")
	}
	count := int(b[0])
	pos := 1
	var orders []music.OrderList
	for i := 0; i < count; i++ {
		if pos+3 > len(b) {
			return nil, 0, fmt.Errorf("order list %d header truncated", i)
		}
		ol := music.OrderList{
			Voice:   int(b[pos]),
			Restart: int(b[pos+1]),
		}
		entries := int(b[pos+2])
		pos += 3
		if pos+entries*2 > len(b) {
			return nil, 0, fmt.Errorf("order list %d entries truncated", i)
		}
		for e := 0; e < entries; e++ {
			ol.Entries = append(ol.Entries, music.OrderEntry{
				Transpose: int8(b[pos]),
				Sequence:  int(b[pos+1]),
			})
			pos += 2
		}
		if ol.Restart > len(ol.Entries) {
			return nil, 0, fmt.Errorf("order list %d restart %d beyond %d entries", i, ol.Restart, len(ol.Entries))
		}
		orders = append(orders, ol)
	}
	return orders, pos, nil
}

func decodeSequences(b []byte) ([]music.Sequence, int, error) {
	if len(b) < 1 {
		return nil, 0, fmt.Errorf("empty sequences payload")
	}
	count := int(b[0])
	pos := 1
	var seqs []music.Sequence
	for i := 0; i < count; i++ {
		if pos >= len(b) {
			return nil, 0, fmt.Errorf("sequence %d header truncated", i)
		}
		seq := music.Sequence{Index: int(b[pos])}
		pos++
		for {
			if pos >= len(b) {
				return nil, 0, fmt.Errorf("sequence %d has no end marker", i)
			}
			v := b[pos]
			pos++
			if v == evEnd {
				break
			}
			switch {
			case v < evDurBase:
				seq.Events = append(seq.Events, music.Event{Kind: music.EvNote, Value: v - evNoteBase})
			case v < evInstBase:
				seq.Events = append(seq.Events, music.Event{Kind: music.EvDuration, Value: v - evDurBase})
			case v < evCmdBase:
				seq.Events = append(seq.Events, music.Event{Kind: music.EvInstrument, Value: v - evInstBase})
			case v < evRest:
				if pos >= len(b) {
					return nil, 0, fmt.Errorf("sequence %d command without operand", i)
				}
				seq.Events = append(seq.Events, music.Event{Kind: music.EvCommand, Value: v - evCmdBase, Arg: b[pos]})
				pos++
			case v == evRest:
				seq.Events = append(seq.Events, music.Event{Kind: music.EvRest})
			case v == evTie:
				seq.Events = append(seq.Events, music.Event{Kind: music.EvTie})
			default:
				return nil, 0, fmt.Errorf("sequence %d holds invalid event byte $%02X", i, v)
			}
		}
		seqs = append(seqs, seq)
	}
	return seqs, pos, nil
}

func decodeInstruments(b []byte) ([]music.Instrument, int, error) {
	if len(b) < 1 {
		return nil, 0, fmt.Errorf("empty instruments payload")
	}
	count := int(b[0])
	pos := 1
	if pos+count*8 > len(b) {
		return nil, 0, fmt.Errorf("%d instrument records truncated", count)
	}
	var insts []music.Instrument
	for i := 0; i < count; i++ {
		r := b[pos : pos+8]
		insts = append(insts, music.Instrument{
			Index:      i,
			AD:         r[0],
			SR:         r[1],
			Wave:       r[2],
			Pulse:      r[3],
			Filter:     r[4],
			PulseWidth: uint16(r[5]) | uint16(r[6])<<8,
			Flags:      r[7],
		})
		pos += 8
	}
	return insts, pos, nil
}

func decodeTable(b []byte, kind music.TableKind) (*music.Table, int, error) {
	if len(b) < 2 {
		return nil, 0, fmt.Errorf("table payload shorter than its header")
	}
	entrySize := int(b[0])
	count := int(b[1])
	pos := 2
	if entrySize == 0 && count == 0 {
		// The table was not recovered from the source; an empty
		// placeholder keeps the block structure intact.
		return nil, pos, nil
	}
	if entrySize == 0 {
		return nil, 0, fmt.Errorf("table declares %d entries of zero size", count)
	}
	if pos+entrySize*count > len(b) {
		return nil, 0, fmt.Errorf("table of %d x %d bytes truncated", count, entrySize)
	}
	t := &music.Table{
		Desc: music.Descriptor{Kind: kind, EntrySize: entrySize, Count: count},
	}
	for i := 0; i < count; i++ {
		t.Rows = append(t.Rows, append([]byte(nil), b[pos:pos+entrySize]...))
		pos += entrySize
	}
	return t, pos, nil
}

func cstring(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}

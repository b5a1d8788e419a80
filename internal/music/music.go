// Package music holds the typed entities recovered from a player binary:
// tables, instruments, sequences and order lists, gathered into a single
// Data aggregate together with the per-entity problems collected along
// the way. Extraction never stops at the first failure; whatever could
// not be recovered is recorded here instead.
package music

import "fmt"

// TableKind identifies one of the player's embedded tables.
type TableKind int

const (
	TableInstrument TableKind = iota
	TableWave
	TablePulse
	TableFilter
	TableTempo
	TableArpeggio
)

var tableKindNames = map[TableKind]string{
	TableInstrument: "instrument",
	TableWave:       "wave",
	TablePulse:      "pulse",
	TableFilter:     "filter",
	TableTempo:      "tempo",
	TableArpeggio:   "arpeggio",
}

func (k TableKind) String() string {
	if name, ok := tableKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("table(%d)", int(k))
}

// TableKinds lists every kind in a stable order, used when a caller
// wants deterministic iteration over per-kind results.
var TableKinds = []TableKind{
	TableInstrument,
	TableWave,
	TablePulse,
	TableFilter,
	TableTempo,
	TableArpeggio,
}

// Descriptor records where a table was found and how its entries are
// laid out. Base is an absolute C64 address.
type Descriptor struct {
	Kind        TableKind
	Base        uint16
	EntrySize   int
	Count       int
	ColumnMajor bool
}

// Table is a located table with its entries decoded into row-major
// order regardless of the source layout. Rows[i] always has
// Desc.EntrySize bytes.
type Table struct {
	Desc       Descriptor
	Rows       [][]byte
	Confidence float64
}

// Row returns entry i, or nil when i is out of range.
func (t *Table) Row(i int) []byte {
	if i < 0 || i >= len(t.Rows) {
		return nil
	}
	return t.Rows[i]
}

// Instrument is one fixed-width instrument record. Wave, Pulse and
// Filter are indices into the sibling tables, not addresses.
type Instrument struct {
	Index      int
	AD, SR     byte
	Wave       byte
	Pulse      byte
	Filter     byte
	PulseWidth uint16
	Flags      byte
}

// EventKind classifies one decoded sequence event.
type EventKind int

const (
	EvNote EventKind = iota
	EvRest
	EvTie
	EvDuration
	EvInstrument
	EvCommand
)

var eventKindNames = map[EventKind]string{
	EvNote:       "note",
	EvRest:       "rest",
	EvTie:        "tie",
	EvDuration:   "duration",
	EvInstrument: "instrument",
	EvCommand:    "command",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is a single decoded sequence event. Value is normalized to the
// event's zero base (note number, duration ticks, instrument index or
// command number); Arg carries a command's operand byte.
type Event struct {
	Kind  EventKind
	Value byte
	Arg   byte
}

// Sequence is one per-voice event stream, decoded up to its end marker.
type Sequence struct {
	Index  int
	Addr   uint16
	Events []Event
}

// OrderEntry references a sequence by index with a transpose applied
// while it plays.
type OrderEntry struct {
	Transpose int8
	Sequence  int
}

// OrderList is the per-voice list of order entries. Restart is the
// entry index playback loops back to after the last entry.
type OrderList struct {
	Voice   int
	Addr    uint16
	Entries []OrderEntry
	Restart int
}

// Problem records one non-fatal extraction failure with enough context
// to diagnose it without re-running.
type Problem struct {
	Stage string
	Err   error
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %v", p.Stage, p.Err)
}

// Data aggregates everything recovered from one binary. It is owned by
// the pipeline run that produced it and is never mutated by the
// transcoder.
type Data struct {
	Player      string
	Tables      map[TableKind]*Table
	Instruments []Instrument
	Sequences   []Sequence
	Orders      []OrderList
	Problems    []Problem
}

// NewData returns an empty aggregate for the given player tag.
func NewData(player string) *Data {
	return &Data{
		Player: player,
		Tables: make(map[TableKind]*Table),
	}
}

// Table returns the located table of the given kind, or nil when that
// kind was not recovered.
func (d *Data) Table(kind TableKind) *Table {
	return d.Tables[kind]
}

// AddProblem records a non-fatal failure for the given pipeline stage.
func (d *Data) AddProblem(stage string, err error) {
	d.Problems = append(d.Problems, Problem{Stage: stage, Err: err})
}

// Sequence returns the sequence with the given index, or nil.
func (d *Data) Sequence(index int) *Sequence {
	for i := range d.Sequences {
		if d.Sequences[i].Index == index {
			return &d.Sequences[i]
		}
	}
	return nil
}

// UsedSequences reports which sequence indices are reachable from at
// least one order-list entry.
func (d *Data) UsedSequences() map[int]bool {
	used := make(map[int]bool)
	for _, ol := range d.Orders {
		for _, e := range ol.Entries {
			used[e.Sequence] = true
		}
	}
	return used
}

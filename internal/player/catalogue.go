package player

import "sidrip/internal/music"

// CatalogueVersion changes whenever a profile is added or a layout
// descriptor is corrected. Reports embed it so results stay traceable
// to the catalogue that produced them.
const CatalogueVersion = 3

// UnknownID is the tag of the explicit unknown profile.
const UnknownID = "unknown"

// Catalogue lists every known driver family in detection order, most
// specific signatures first. Adding a family is a data addition here,
// not new control flow anywhere else.
//
// The layout figures come from disassembling driver binaries by hand;
// offsets are relative to the load address of the driver, which always
// sits at the start of the image for these families.
var Catalogue = []*Profile{
	{
		// NewPlayer v21 tightened the sequence encoding with a
		// run-length layer; table layout otherwise matches v20. The tag
		// shares the "laxity" stem with np20 on purpose: lookup must
		// still keep them apart.
		ID:             "laxity-np21",
		Name:           "Laxity NewPlayer v21 (packed)",
		InstrumentSize: 8,
		Encoding:       EncodingNewPlayerPacked,
		Tables: map[music.TableKind]TableHint{
			music.TableInstrument: {WindowStart: 0x0700, WindowEnd: 0x0B00, EntrySize: 8, MaxEntries: 32, Terminator: 0xFF, ColumnMajor: true},
			music.TableWave:       {WindowStart: 0x0900, WindowEnd: 0x0D00, EntrySize: 2, MaxEntries: 128, Terminator: 0xFF},
			music.TablePulse:      {WindowStart: 0x0980, WindowEnd: 0x0D80, EntrySize: 3, MaxEntries: 64, Terminator: 0xFF},
			music.TableFilter:     {WindowStart: 0x0A00, WindowEnd: 0x0E00, EntrySize: 3, MaxEntries: 64, Terminator: 0xFF},
		},
		Orders:    OrderHint{PtrOffset: [3]uint16{0x00C0, 0x00C2, 0x00C4}},
		Sequences: SequenceHint{LoOffset: 0x0300, HiOffset: 0x0380, Max: 128},
		Signatures: []Signature{
			{Offset: 0x0000, Bytes: []byte{0x4C, 0x00, 0x00, 0x4C}, Mask: []byte{0xFF, 0x00, 0x00, 0xFF}},
			{Offset: 0x00B8, Bytes: []byte{0xA9, 0x00, 0x8D, 0x18, 0xD4}, Mask: []byte{0xFF, 0x00, 0xFF, 0xFF, 0xFF}},
			// The unpacker loop is the one code block v20 lacks.
			{Offset: 0x0140, Bytes: []byte{0xC9, 0xE0, 0xB0}},
		},
	},
	{
		// Laxity's NewPlayer v20, the layout used by most Vibrants
		// releases after 1990. Init/play vectors up front, column-major
		// instrument table, unpacked sequences.
		ID:             "laxity-np20",
		Name:           "Laxity NewPlayer v20",
		InstrumentSize: 8,
		Encoding:       EncodingNewPlayer,
		Tables: map[music.TableKind]TableHint{
			music.TableInstrument: {WindowStart: 0x0700, WindowEnd: 0x0B00, EntrySize: 8, MaxEntries: 32, Terminator: 0xFF, ColumnMajor: true},
			music.TableWave:       {WindowStart: 0x0900, WindowEnd: 0x0D00, EntrySize: 2, MaxEntries: 128, Terminator: 0xFF},
			music.TablePulse:      {WindowStart: 0x0980, WindowEnd: 0x0D80, EntrySize: 3, MaxEntries: 64, Terminator: 0xFF},
			music.TableFilter:     {WindowStart: 0x0A00, WindowEnd: 0x0E00, EntrySize: 3, MaxEntries: 64, Terminator: 0xFF},
		},
		Orders:    OrderHint{PtrOffset: [3]uint16{0x00C0, 0x00C2, 0x00C4}},
		Sequences: SequenceHint{LoOffset: 0x0300, HiOffset: 0x0380, Max: 128},
		Signatures: []Signature{
			{Offset: 0x0000, Bytes: []byte{0x4C, 0x00, 0x00, 0x4C}, Mask: []byte{0xFF, 0x00, 0x00, 0xFF}},
			{Offset: 0x00B8, Bytes: []byte{0xA9, 0x00, 0x8D, 0x18, 0xD4}, Mask: []byte{0xFF, 0x00, 0xFF, 0xFF, 0xFF}},
		},
	},
	{
		// JCH's editor shipped NewPlayer-compatible drivers with the
		// instrument table row-major and a narrower command range.
		ID:             "jch-np",
		Name:           "JCH NewPlayer",
		InstrumentSize: 8,
		Encoding:       EncodingNewPlayer,
		Tables: map[music.TableKind]TableHint{
			music.TableInstrument: {WindowStart: 0x0600, WindowEnd: 0x0A00, EntrySize: 8, MaxEntries: 32, Terminator: 0xFF},
			music.TableWave:       {WindowStart: 0x0800, WindowEnd: 0x0C00, EntrySize: 2, MaxEntries: 128, Terminator: 0xFF},
			music.TablePulse:      {WindowStart: 0x0880, WindowEnd: 0x0C80, EntrySize: 3, MaxEntries: 64, Terminator: 0xFF},
			music.TableFilter:     {WindowStart: 0x0900, WindowEnd: 0x0D00, EntrySize: 3, MaxEntries: 64, Terminator: 0xFF},
		},
		Orders:    OrderHint{PtrOffset: [3]uint16{0x00A6, 0x00A8, 0x00AA}},
		Sequences: SequenceHint{LoOffset: 0x02C0, HiOffset: 0x0340, Max: 128},
		Signatures: []Signature{
			{Offset: 0x0000, Bytes: []byte{0x4C, 0x00, 0x00, 0x4C}, Mask: []byte{0xFF, 0x00, 0x00, 0xFF}},
			{Offset: 0x00A0, Bytes: []byte{0xAD, 0x00, 0x00, 0xF0}, Mask: []byte{0xFF, 0x00, 0x00, 0xFF}},
		},
	},
	{
		// GoatTracker v2 exported players. Row-major instruments with a
		// wider record, wave table split in two columns, tempo and
		// arpeggio tables present.
		ID:             "goattracker2",
		Name:           "GoatTracker v2 export",
		InstrumentSize: 9,
		Encoding:       EncodingTracker,
		Tables: map[music.TableKind]TableHint{
			music.TableInstrument: {WindowStart: 0x0400, WindowEnd: 0x0900, EntrySize: 9, MaxEntries: 63, Terminator: 0xFF},
			music.TableWave:       {WindowStart: 0x0700, WindowEnd: 0x0C00, EntrySize: 2, MaxEntries: 255, Terminator: 0xFF},
			music.TablePulse:      {WindowStart: 0x0780, WindowEnd: 0x0C80, EntrySize: 3, MaxEntries: 255, Terminator: 0xFF},
			music.TableFilter:     {WindowStart: 0x0800, WindowEnd: 0x0D00, EntrySize: 3, MaxEntries: 255, Terminator: 0xFF},
			music.TableTempo:      {WindowStart: 0x0380, WindowEnd: 0x0500, EntrySize: 1, MaxEntries: 16, Terminator: 0xFF},
			music.TableArpeggio:   {WindowStart: 0x0780, WindowEnd: 0x0D00, EntrySize: 1, MaxEntries: 255, Terminator: 0x7F},
		},
		Orders:    OrderHint{PtrOffset: [3]uint16{0x0040, 0x0042, 0x0044}},
		Sequences: SequenceHint{LoOffset: 0x0300, HiOffset: 0x03D0, Max: 208},
		Signatures: []Signature{
			{Offset: 0x0000, Bytes: []byte{0x4C, 0x00, 0x00, 0x4C}, Mask: []byte{0xFF, 0x00, 0x00, 0xFF}},
			{Offset: 0x003A, Bytes: []byte{0x8D, 0x15, 0xD4, 0x8D, 0x16, 0xD4}},
		},
	},
	{
		// The explicit unknown variant. Downstream stages refuse to
		// guess a layout for it.
		ID:   UnknownID,
		Name: "unidentified player",
	},
}

var byID = func() map[string]*Profile {
	m := make(map[string]*Profile, len(Catalogue))
	for _, p := range Catalogue {
		m[p.ID] = p
	}
	return m
}()

// Lookup resolves a catalogue tag to its profile by exact identity.
func Lookup(id string) (*Profile, bool) {
	p, ok := byID[id]
	return p, ok
}

// IDs returns every catalogue tag in detection order, the unknown
// profile last.
func IDs() []string {
	ids := make([]string, 0, len(Catalogue))
	for _, p := range Catalogue {
		ids = append(ids, p.ID)
	}
	return ids
}

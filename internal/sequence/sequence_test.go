package sequence

import (
	"errors"
	"reflect"
	"testing"

	"sidrip/internal/memimage"
	"sidrip/internal/music"
	"sidrip/internal/player"
)

func npProfile(packed bool) *player.Profile {
	id := "laxity-np20"
	if packed {
		id = "laxity-np21"
	}
	p, ok := player.Lookup(id)
	if !ok {
		panic("catalogue missing " + id)
	}
	return p
}

func image(t *testing.T, load uint16, data []byte) *memimage.Image {
	t.Helper()
	img, err := memimage.New(load, data)
	if err != nil {
		t.Fatalf("memimage.New() error = %v", err)
	}
	return img
}

func TestDecode(t *testing.T) {
	profile := npProfile(false)

	tests := []struct {
		name    string
		stream  []byte
		want    []music.Event
		wantErr bool
	}{
		{
			name:   "notes with duration prefix",
			stream: []byte{0x63, 0x18, 0x1C, 0x1F, 0xFF}, // dur 3, C-2 E-2 G-2
			want: []music.Event{
				{Kind: music.EvDuration, Value: 3},
				{Kind: music.EvNote, Value: 0x18},
				{Kind: music.EvNote, Value: 0x1C},
				{Kind: music.EvNote, Value: 0x1F},
			},
		},
		{
			name:   "instrument select and command",
			stream: []byte{0x82, 0x18, 0xA3, 0x41, 0xFF}, // inst 2, note, cmd 3 arg $41
			want: []music.Event{
				{Kind: music.EvInstrument, Value: 2},
				{Kind: music.EvNote, Value: 0x18},
				{Kind: music.EvCommand, Value: 3, Arg: 0x41},
			},
		},
		{
			name:   "rest and tie",
			stream: []byte{0x18, 0xC0, 0xC1, 0xFF},
			want: []music.Event{
				{Kind: music.EvNote, Value: 0x18},
				{Kind: music.EvRest},
				{Kind: music.EvTie},
			},
		},
		{
			name:   "empty sequence",
			stream: []byte{0xFF},
			want:   nil,
		},
		{
			name:    "byte outside every category",
			stream:  []byte{0x18, 0xD7, 0xFF}, // $D7 fits nothing in this grammar
			wantErr: true,
		},
		{
			name:    "command without operand",
			stream:  []byte{0xA0, 0xFF},
			wantErr: true,
		},
		{
			name:    "missing end marker",
			stream:  []byte{0x18, 0x19},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image(t, 0x2000, tt.stream)
			seq, err := Decode(img, profile, 0, 0x2000)
			if tt.wantErr {
				var de *DecodeError
				if !errors.As(err, &de) {
					t.Fatalf("Decode() error = %v, want DecodeError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(seq.Events, tt.want) {
				t.Errorf("Decode() events = %+v, want %+v", seq.Events, tt.want)
			}
		})
	}
}

func TestDecodeErrorNamesAddressAndByte(t *testing.T) {
	// The bad byte sits at $2002.
	img := image(t, 0x2000, []byte{0x18, 0x19, 0xD7, 0xFF})

	_, err := Decode(img, npProfile(false), 0, 0x2000)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Decode() error = %v, want DecodeError", err)
	}
	if de.Addr != 0x2002 || de.Byte != 0xD7 {
		t.Errorf("DecodeError = addr $%04X byte $%02X, want $2002 $D7", de.Addr, de.Byte)
	}
}

func TestDecodePackedRuns(t *testing.T) {
	// $E2 = run of 4: the following note repeats four times. The same
	// stream must also carry plain events after the run.
	img := image(t, 0x2000, []byte{0x63, 0xE2, 0x18, 0x1C, 0xFF})

	seq, err := Decode(img, npProfile(true), 0, 0x2000)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []music.Event{
		{Kind: music.EvDuration, Value: 3},
		{Kind: music.EvNote, Value: 0x18},
		{Kind: music.EvNote, Value: 0x18},
		{Kind: music.EvNote, Value: 0x18},
		{Kind: music.EvNote, Value: 0x18},
		{Kind: music.EvNote, Value: 0x1C},
	}
	if !reflect.DeepEqual(seq.Events, want) {
		t.Errorf("Decode() events = %+v, want %+v", seq.Events, want)
	}
}

func TestDecodePackedRunOfCommands(t *testing.T) {
	// A run expanding to command bytes must still pair each command
	// with the operand that follows in the expanded stream.
	img := image(t, 0x2000, []byte{0xE0, 0xA1, 0x30, 0xFF})

	seq, err := Decode(img, npProfile(true), 0, 0x2000)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	// Expanded stream is A1 A1 30: the first $A1 is command 1, the
	// second $A1 becomes its operand, and $30 stays a plain note.
	want := []music.Event{
		{Kind: music.EvCommand, Value: 1, Arg: 0xA1},
		{Kind: music.EvNote, Value: 0x30},
	}
	if !reflect.DeepEqual(seq.Events, want) {
		t.Errorf("Decode() events = %+v, want %+v", seq.Events, want)
	}
}

func TestPackedGrammarRejectedByUnpackedProfile(t *testing.T) {
	// The same bytes under the unpacked grammar: $E2 is no category.
	img := image(t, 0x2000, []byte{0x63, 0xE2, 0x18, 0x1C, 0xFF})

	_, err := Decode(img, npProfile(false), 0, 0x2000)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Decode() error = %v, want DecodeError", err)
	}
	if de.Byte != 0xE2 {
		t.Errorf("DecodeError.Byte = $%02X, want $E2", de.Byte)
	}
}

func TestDecodeOrderList(t *testing.T) {
	// Transpose up 2, sequences 0 1, transpose reset, sequence 1,
	// end with restart at entry 1.
	img := image(t, 0x3000, []byte{0xA2, 0x00, 0x01, 0xA0, 0x01, 0xFF, 0x01})

	ol, err := DecodeOrderList(img, 1, 0x3000)
	if err != nil {
		t.Fatalf("DecodeOrderList() error = %v", err)
	}
	want := []music.OrderEntry{
		{Transpose: 2, Sequence: 0},
		{Transpose: 2, Sequence: 1},
		{Transpose: 0, Sequence: 1},
	}
	if !reflect.DeepEqual(ol.Entries, want) {
		t.Errorf("Entries = %+v, want %+v", ol.Entries, want)
	}
	if ol.Restart != 1 {
		t.Errorf("Restart = %d, want 1", ol.Restart)
	}
	if ol.Voice != 1 {
		t.Errorf("Voice = %d, want 1", ol.Voice)
	}
}

func TestDecodeOrderListRestartOutOfRange(t *testing.T) {
	img := image(t, 0x3000, []byte{0x00, 0xFF, 0x07})

	_, err := DecodeOrderList(img, 0, 0x3000)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("DecodeOrderList() error = %v, want DecodeError", err)
	}
}

func TestDecodeOrderListNegativeTranspose(t *testing.T) {
	img := image(t, 0x3000, []byte{0x9C, 0x05, 0xFF, 0x00}) // $9C = down 4

	ol, err := DecodeOrderList(img, 0, 0x3000)
	if err != nil {
		t.Fatalf("DecodeOrderList() error = %v", err)
	}
	if len(ol.Entries) != 1 || ol.Entries[0].Transpose != -4 {
		t.Errorf("Entries = %+v, want one entry with transpose -4", ol.Entries)
	}
}

// buildSong lays out a minimal but complete np20 song body: order-list
// pointers and sequence address tables at the profile's fixed offsets,
// three order lists and two sequences further up.
func buildSong(t *testing.T, corruptSeq1 bool) *memimage.Image {
	profile := npProfile(false)
	data := make([]byte, 0x0400)
	load := uint16(0x1000)

	const (
		order0 = 0x0200
		order1 = 0x0210
		order2 = 0x0220
		seq0   = 0x0240
		seq1   = 0x0260
	)

	// Word pointers to each voice's order list.
	for v, off := range profile.Orders.PtrOffset {
		addr := load + uint16([]int{order0, order1, order2}[v])
		data[off] = byte(addr)
		data[off+1] = byte(addr >> 8)
	}
	// Sequence address tables, lo and hi split.
	for i, off := range []int{seq0, seq1} {
		addr := load + uint16(off)
		data[int(profile.Sequences.LoOffset)+i] = byte(addr)
		data[int(profile.Sequences.HiOffset)+i] = byte(addr >> 8)
	}

	copy(data[order0:], []byte{0x00, 0x01, 0xFF, 0x00})
	copy(data[order1:], []byte{0x01, 0xFF, 0x00})
	copy(data[order2:], []byte{0xA5, 0x00, 0xFF, 0x00})

	copy(data[seq0:], []byte{0x63, 0x18, 0x1C, 0xFF})
	if corruptSeq1 {
		copy(data[seq1:], []byte{0x63, 0xD7, 0xFF})
	} else {
		copy(data[seq1:], []byte{0x82, 0x65, 0x24, 0xFF})
	}

	return image(t, load, data)
}

func TestExtractAll(t *testing.T) {
	img := buildSong(t, false)
	data := music.NewData("laxity-np20")

	ExtractAll(img, npProfile(false), data)

	if len(data.Problems) != 0 {
		t.Fatalf("Problems = %v, want none", data.Problems)
	}
	if len(data.Orders) != 3 {
		t.Fatalf("Orders = %d, want 3", len(data.Orders))
	}
	if len(data.Sequences) != 2 {
		t.Fatalf("Sequences = %d, want 2", len(data.Sequences))
	}
	if data.Orders[2].Entries[0].Transpose != 5 {
		t.Errorf("voice 2 transpose = %d, want 5", data.Orders[2].Entries[0].Transpose)
	}
	used := data.UsedSequences()
	if !used[0] || !used[1] {
		t.Errorf("UsedSequences() = %v, want 0 and 1 used", used)
	}
}

func TestExtractAllPartialFailure(t *testing.T) {
	// Sequence 1 contains an undecodable byte; sequence 0 and all
	// three order lists must still come through, with one problem
	// recorded against sequence 1.
	img := buildSong(t, true)
	data := music.NewData("laxity-np20")

	ExtractAll(img, npProfile(false), data)

	if len(data.Orders) != 3 {
		t.Errorf("Orders = %d, want 3", len(data.Orders))
	}
	if len(data.Sequences) != 1 || data.Sequences[0].Index != 0 {
		t.Fatalf("Sequences = %+v, want only sequence 0", data.Sequences)
	}
	if len(data.Problems) != 1 {
		t.Fatalf("Problems = %v, want exactly one", data.Problems)
	}
	var de *DecodeError
	if !errors.As(data.Problems[0].Err, &de) {
		t.Fatalf("Problems[0].Err = %v, want DecodeError", data.Problems[0].Err)
	}
	if de.Byte != 0xD7 {
		t.Errorf("DecodeError.Byte = $%02X, want $D7", de.Byte)
	}
}

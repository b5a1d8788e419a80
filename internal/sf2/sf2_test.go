package sf2

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"sidrip/internal/music"
)

// sampleData builds an aggregate with every component populated the
// way the extractor would hand it over.
func sampleData() *music.Data {
	data := music.NewData("laxity-np20")

	data.Tables[music.TableWave] = &music.Table{
		Desc: music.Descriptor{Kind: music.TableWave, Base: 0x1040, EntrySize: 2, Count: 3},
		Rows: [][]byte{{0x11, 0x00}, {0x21, 0x0C}, {0x41, 0x07}},
	}
	data.Tables[music.TablePulse] = &music.Table{
		Desc: music.Descriptor{Kind: music.TablePulse, Base: 0x1080, EntrySize: 3, Count: 2},
		Rows: [][]byte{{0x08, 0x80, 0x02}, {0x88, 0x00, 0x00}},
	}
	data.Tables[music.TableFilter] = &music.Table{
		Desc: music.Descriptor{Kind: music.TableFilter, Base: 0x10C0, EntrySize: 3, Count: 1},
		Rows: [][]byte{{0x90, 0xF1, 0x01}},
	}
	data.Instruments = []music.Instrument{
		{Index: 0, AD: 0x0A, SR: 0xF8, Wave: 0, Pulse: 0, Filter: 0, PulseWidth: 0x0800, Flags: 0x01},
		{Index: 1, AD: 0x22, SR: 0xA9, Wave: 1, Pulse: 1, Filter: 0, PulseWidth: 0x0400},
	}
	data.Sequences = []music.Sequence{
		{Index: 0, Events: []music.Event{
			{Kind: music.EvDuration, Value: 3},
			{Kind: music.EvInstrument, Value: 1},
			{Kind: music.EvNote, Value: 0x18},
			{Kind: music.EvCommand, Value: 2, Arg: 0x41},
			{Kind: music.EvRest},
			{Kind: music.EvTie},
		}},
		{Index: 1, Events: []music.Event{
			{Kind: music.EvNote, Value: 0x24},
		}},
	}
	data.Orders = []music.OrderList{
		{Voice: 0, Entries: []music.OrderEntry{{Transpose: 0, Sequence: 0}, {Transpose: 2, Sequence: 1}}, Restart: 0},
		{Voice: 1, Entries: []music.OrderEntry{{Transpose: -4, Sequence: 1}}, Restart: 0},
		{Voice: 2, Entries: []music.OrderEntry{{Transpose: 0, Sequence: 0}}, Restart: 0},
	}
	return data
}

func TestTranscodeConformant(t *testing.T) {
	buf, v := Transcode(sampleData(), DefaultTemplate(), Meta{Title: "Ocean Loader", Author: "Galway"})
	if !v.Conformant {
		t.Fatalf("Transcode() not conformant: %v", v.Errors)
	}
	if len(buf) != DefaultTemplate().Size {
		t.Errorf("buffer size = %d, want %d", len(buf), DefaultTemplate().Size)
	}
	if errs := Validate(buf); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
	if !bytes.Equal(buf[:4], Magic[:]) {
		t.Errorf("magic = % X", buf[:4])
	}
}

func TestRoundTrip(t *testing.T) {
	src := sampleData()
	buf, v := Transcode(src, DefaultTemplate(), Meta{Title: "t", Author: "a"})
	if !v.Conformant {
		t.Fatalf("Transcode() not conformant: %v", v.Errors)
	}

	got, err := ReadData(buf)
	if err != nil {
		t.Fatalf("ReadData() error = %v", err)
	}

	// Table contents must survive byte-identical.
	for _, kind := range []music.TableKind{music.TableWave, music.TablePulse, music.TableFilter} {
		want := src.Table(kind)
		have := got.Table(kind)
		if have == nil {
			t.Fatalf("%s table missing after round trip", kind)
		}
		if len(have.Rows) != len(want.Rows) {
			t.Fatalf("%s table rows = %d, want %d", kind, len(have.Rows), len(want.Rows))
		}
		for i := range want.Rows {
			if !bytes.Equal(have.Rows[i], want.Rows[i]) {
				t.Errorf("%s row %d = % X, want % X", kind, i, have.Rows[i], want.Rows[i])
			}
		}
	}

	if !reflect.DeepEqual(got.Instruments, src.Instruments) {
		t.Errorf("instruments = %+v, want %+v", got.Instruments, src.Instruments)
	}
	if !reflect.DeepEqual(got.Orders, src.Orders) {
		t.Errorf("orders = %+v, want %+v", got.Orders, src.Orders)
	}
	if len(got.Sequences) != len(src.Sequences) {
		t.Fatalf("sequences = %d, want %d", len(got.Sequences), len(src.Sequences))
	}
	for i := range src.Sequences {
		if got.Sequences[i].Index != src.Sequences[i].Index ||
			!reflect.DeepEqual(got.Sequences[i].Events, src.Sequences[i].Events) {
			t.Errorf("sequence %d = %+v, want %+v", i, got.Sequences[i], src.Sequences[i])
		}
	}
	if got.Player != "driver11" {
		t.Errorf("driver tag = %q, want driver11", got.Player)
	}
}

// Re-extracting from the transcoded buffer and transcoding again must
// reproduce the buffer bit for bit: nothing the format supports
// natively is lossy.
func TestTranscodeIsStable(t *testing.T) {
	first, v := Transcode(sampleData(), DefaultTemplate(), Meta{Title: "t", Author: "a"})
	if !v.Conformant {
		t.Fatalf("first Transcode() not conformant: %v", v.Errors)
	}
	reread, err := ReadData(first)
	if err != nil {
		t.Fatalf("ReadData() error = %v", err)
	}
	second, v := Transcode(reread, DefaultTemplate(), Meta{Title: "t", Author: "a"})
	if !v.Conformant {
		t.Fatalf("second Transcode() not conformant: %v", v.Errors)
	}
	if !bytes.Equal(first, second) {
		t.Error("second transcode differs from the first")
	}
}

func TestTranscodeCapacityExceeded(t *testing.T) {
	data := sampleData()
	// One enormous sequence blows the tiny template's sequence block.
	events := make([]music.Event, 0, 1200)
	for i := 0; i < 1200; i++ {
		events = append(events, music.Event{Kind: music.EvNote, Value: byte(i % 0x60)})
	}
	data.Sequences = append(data.Sequences, music.Sequence{Index: 2, Events: events})

	tpl, ok := TemplateByID("driver11-tiny")
	if !ok {
		t.Fatal("driver11-tiny template missing")
	}

	buf, v := Transcode(data, tpl, Meta{})
	if v.Conformant {
		t.Fatal("Transcode() conformant despite overflowing block")
	}
	if buf == nil {
		t.Fatal("Transcode() returned no buffer; debugging callers need it")
	}

	var we *WriteError
	found := false
	for _, err := range v.Errors {
		if errors.As(err, &we) {
			found = true
			if we.Block != BlockSequences {
				t.Errorf("WriteError.Block = %v, want sequences", we.Block)
			}
			if we.Need <= we.Capacity {
				t.Errorf("WriteError = %+v, want Need > Capacity", we)
			}
		}
	}
	if !found {
		t.Fatalf("Errors = %v, want a WriteError", v.Errors)
	}

	// The overflowing block is omitted, not truncated: its directory
	// entry declares zero bytes.
	hdr, _, err := parseHeader(buf)
	if err != nil {
		t.Fatalf("parseHeader() error = %v", err)
	}
	for _, ent := range hdr.entries {
		if ent.kind == BlockSequences && ent.size != 0 {
			t.Errorf("sequences block declares %d bytes, want 0", ent.size)
		}
	}
}

func TestValidateCorruption(t *testing.T) {
	buf, v := Transcode(sampleData(), DefaultTemplate(), Meta{})
	if !v.Conformant {
		t.Fatalf("Transcode() not conformant: %v", v.Errors)
	}

	t.Run("flipped payload byte breaks the checksum", func(t *testing.T) {
		bad := append([]byte(nil), buf...)
		bad[0x0C05] ^= 0xFF // inside the instruments block
		if errs := Validate(bad); len(errs) == 0 {
			t.Error("Validate() passed a corrupted payload")
		}
	})

	t.Run("inflated declared size is caught", func(t *testing.T) {
		bad := append([]byte(nil), buf...)
		// First directory entry's size field.
		putWord(bad, offDirectory+3, word(bad, offDirectory+3)+4)
		if errs := Validate(bad); len(errs) == 0 {
			t.Error("Validate() passed a wrong declared size")
		}
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), buf...)
		bad[0] = 'X'
		if errs := Validate(bad); len(errs) == 0 {
			t.Error("Validate() passed bad magic")
		}
	})
}

func TestTemplateLookupIsExact(t *testing.T) {
	if _, ok := TemplateByID("driver11"); !ok {
		t.Error("driver11 template missing")
	}
	if _, ok := TemplateByID("driver1"); ok {
		t.Error("TemplateByID(driver1) matched, want exact lookup only")
	}
	for _, tpl := range Templates {
		for _, blk := range tpl.Blocks {
			if blk.Offset+blk.Capacity > tpl.Size {
				t.Errorf("template %q: %s block overruns the layout", tpl.ID, blk.Kind)
			}
		}
	}
}

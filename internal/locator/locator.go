// Package locator finds the player's embedded tables at unknown
// addresses. For each table kind it enumerates candidate base addresses
// inside the profile's search window, scores each candidate with a
// kind-specific validator, and keeps the best one. Scoring is a pure
// function of the image bytes, so a run over the same image and hints
// always selects the same candidate: the reduction is max-by-score,
// ties broken by lowest address.
package locator

import (
	"fmt"

	"sidrip/internal/logging"
	"sidrip/internal/memimage"
	"sidrip/internal/music"
	"sidrip/internal/player"
)

// MinConfidence is the score a candidate must clear to be accepted.
// Scores are fractions in [0,1] of validator checks passed.
const MinConfidence = 0.65

// MinEntries is the smallest table worth considering. A lone entry in
// front of a terminator byte is no evidence of a table.
const MinEntries = 2

// NotFoundError reports that no candidate for a table kind cleared the
// confidence threshold inside the search window.
type NotFoundError struct {
	Kind   music.TableKind
	Window [2]uint16
	Best   float64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s table found in $%04X-$%04X (best candidate scored %.2f, need %.2f)",
		e.Kind, e.Window[0], e.Window[1], e.Best, MinConfidence)
}

// Candidate is one scored base address. Count is the number of entries
// the validator accepted before the terminator.
type Candidate struct {
	Addr  uint16
	Score float64
	Count int
}

// Locate searches for one table kind and decodes its entries. The
// returned table's rows are always row-major regardless of the source
// layout.
func Locate(img *memimage.Image, profile *player.Profile, kind music.TableKind) (*music.Table, error) {
	hint, ok := profile.Hint(kind)
	if !ok {
		return nil, &NotFoundError{Kind: kind}
	}

	lo, hi := window(img, hint)
	best := Candidate{Score: -1}
	for addr := lo; addr < hi; addr++ {
		c, ok := score(img, hint, kind, uint16(addr))
		if !ok {
			continue
		}
		// Strictly-greater keeps the lowest address on ties.
		if c.Score > best.Score {
			best = c
		}
	}

	if best.Score < MinConfidence {
		return nil, &NotFoundError{Kind: kind, Window: [2]uint16{uint16(lo), uint16(hi)}, Best: best.Score}
	}

	return decode(img, hint, kind, best)
}

// LocateAll runs Locate for every kind the profile describes, storing
// results and per-kind failures into data. Failures for one kind never
// stop the others.
func LocateAll(img *memimage.Image, profile *player.Profile, data *music.Data) {
	for _, kind := range music.TableKinds {
		if _, ok := profile.Hint(kind); !ok {
			continue
		}
		table, err := Locate(img, profile, kind)
		if err != nil {
			data.AddProblem(fmt.Sprintf("locate %s table", kind), err)
			continue
		}
		data.Tables[kind] = table

		if logging.IsDebug() {
			lg := logging.NewLogger()
			lg.Debug("located table",
				"kind", kind,
				"base", fmt.Sprintf("$%04X", table.Desc.Base),
				"entries", len(table.Rows),
				"confidence", fmt.Sprintf("%.2f", table.Confidence))
		}
	}
}

// window resolves the hint's load-relative search window to absolute
// addresses clamped to the image.
func window(img *memimage.Image, hint player.TableHint) (int, int) {
	lo := int(img.Load()) + int(hint.WindowStart)
	hi := int(img.Load()) + int(hint.WindowEnd)
	if hint.WindowEnd == 0 || hi > img.End() {
		hi = img.End()
	}
	if lo < int(img.Load()) {
		lo = int(img.Load())
	}
	if hi > memimage.AddressSpace {
		hi = memimage.AddressSpace
	}
	return lo, hi
}

// score rates one candidate base address. It is a pure function: no
// shared state, no side effects, same result for the same inputs.
func score(img *memimage.Image, hint player.TableHint, kind music.TableKind, addr uint16) (Candidate, bool) {
	rows, found := scanRows(img, hint, addr)
	if !found || len(rows) < MinEntries {
		return Candidate{}, false
	}

	var passed, checks int
	for _, row := range rows {
		p, c := scoreRow(kind, row, len(rows), hint)
		passed += p
		checks += c
	}
	if checks == 0 {
		return Candidate{}, false
	}

	return Candidate{
		Addr:  addr,
		Score: float64(passed) / float64(checks),
		Count: len(rows),
	}, true
}

// scanRows reads entries starting at addr until the terminator, up to
// the hint's maximum. found is false when the terminator never appears
// inside the window or an entry runs off the image: such a candidate
// violates the in-bounds invariant and is discarded outright.
func scanRows(img *memimage.Image, hint player.TableHint, addr uint16) ([][]byte, bool) {
	if hint.ColumnMajor {
		return scanColumns(img, hint, addr)
	}

	var rows [][]byte
	a := int(addr)
	for len(rows) < hint.MaxEntries {
		b, ok := img.Byte(uint16(a))
		if !ok {
			return nil, false
		}
		if b == hint.Terminator {
			return rows, true
		}
		row, ok := img.Slice(uint16(a), hint.EntrySize)
		if !ok {
			return nil, false
		}
		rows = append(rows, row)
		a += hint.EntrySize
	}

	// Fixed-count tables carry no terminator; a full window of entries
	// is acceptable as-is.
	return rows, true
}

// scanColumns reads a column-major table: parameter 0 for all entries,
// then parameter 1, and so on. Columns are allocated at the hint's
// maximum stride; a terminator in the first column ends the used part
// early, the remaining slots are spare.
func scanColumns(img *memimage.Image, hint player.TableHint, addr uint16) ([][]byte, bool) {
	count := hint.MaxEntries
	for i := 0; i < hint.MaxEntries; i++ {
		b, ok := img.Byte(addr + uint16(i))
		if !ok {
			return nil, false
		}
		if b == hint.Terminator {
			count = i
			break
		}
	}
	if count == 0 {
		return nil, true
	}
	if !img.Contains(addr, hint.MaxEntries*hint.EntrySize) {
		return nil, false
	}

	stride := hint.MaxEntries
	rows := make([][]byte, count)
	for i := range rows {
		row := make([]byte, hint.EntrySize)
		for p := 0; p < hint.EntrySize; p++ {
			b, _ := img.Byte(addr + uint16(p*stride+i))
			row[p] = b
		}
		rows[i] = row
	}
	return rows, true
}

// scoreRow applies the kind-specific plausibility checks to one entry
// and returns checks passed / checks applied.
func scoreRow(kind music.TableKind, row []byte, tableLen int, hint player.TableHint) (passed, checks int) {
	switch kind {
	case music.TableInstrument:
		return scoreInstrumentRow(row, hint)
	case music.TableWave:
		return scoreWaveRow(row)
	case music.TablePulse, music.TableFilter:
		return scoreModRow(row, tableLen)
	case music.TableTempo:
		return scoreSmallValueRow(row, 0x20)
	case music.TableArpeggio:
		return scoreSmallValueRow(row, 0x60)
	}
	return 0, 0
}

// scoreInstrumentRow checks the fields every NewPlayer-shaped
// instrument record shares: AD/SR plausibility and table indices that
// resolve somewhere sane.
func scoreInstrumentRow(row []byte, hint player.TableHint) (passed, checks int) {
	if len(row) < 5 {
		return 0, 1
	}
	ad, sr := row[0], row[1]

	// A record of all zeroes is legal but carries no evidence.
	checks++
	if ad != 0 || sr != 0 {
		passed++
	}
	// Sustain of zero with a zero release is rare in real instruments.
	checks++
	if sr&0xF0 != 0 || sr&0x0F != 0 || (ad == 0 && sr == 0) {
		passed++
	}
	// Table indices stay below the sibling tables' maximum sizes.
	for _, idx := range row[2:5] {
		checks++
		if idx < 0x80 {
			passed++
		}
	}
	return passed, checks
}

// scoreWaveRow checks a (waveform, note-offset) pair. Real wave tables
// mix SID control bytes with small relative note offsets.
func scoreWaveRow(row []byte) (passed, checks int) {
	if len(row) < 2 {
		return 0, 1
	}
	wf, note := row[0], row[1]

	checks++
	if plausibleWaveform(wf) {
		passed++
	}
	checks++
	// Note column: absolute note (< 0x60), relative offset, or a jump
	// marker back into the table.
	if note < 0x60 || note >= 0xE0 {
		passed++
	}
	return passed, checks
}

// plausibleWaveform reports whether b looks like a SID control
// register value: one or more waveform bits, optionally ring/sync/gate,
// or a small table command byte.
func plausibleWaveform(b byte) bool {
	if b&0xF0 != 0 && b&0xF0 != 0xF0 {
		return true
	}
	return b <= 0x0F
}

// scoreModRow checks a pulse/filter program row: a command nibble in
// the first byte and jump targets that stay inside the table.
func scoreModRow(row []byte, tableLen int) (passed, checks int) {
	if len(row) < 3 {
		return 0, 1
	}
	checks++
	if row[0] != 0x00 || row[1] != 0x00 || row[2] != 0x00 {
		passed++
	}
	checks++
	// Jump rows point back into the table.
	if row[0]&0x80 == 0 || int(row[1]) < tableLen {
		passed++
	}
	return passed, checks
}

// scoreSmallValueRow checks single-byte tables whose values stay under
// a kind-specific ceiling (tempo ticks, arpeggio note offsets).
func scoreSmallValueRow(row []byte, ceiling byte) (passed, checks int) {
	checks = 1
	if len(row) >= 1 && row[0] < ceiling {
		passed = 1
	}
	return passed, checks
}

// decode turns the winning candidate into a typed table with row-major
// entries copied out of the image.
func decode(img *memimage.Image, hint player.TableHint, kind music.TableKind, c Candidate) (*music.Table, error) {
	rows, ok := scanRows(img, hint, c.Addr)
	if !ok {
		return nil, &NotFoundError{Kind: kind, Best: c.Score}
	}

	out := make([][]byte, len(rows))
	for i, row := range rows {
		out[i] = append([]byte(nil), row...)
	}

	return &music.Table{
		Desc: music.Descriptor{
			Kind:        kind,
			Base:        c.Addr,
			EntrySize:   hint.EntrySize,
			Count:       len(out),
			ColumnMajor: hint.ColumnMajor,
		},
		Rows:       out,
		Confidence: c.Score,
	}, nil
}

// Package pipeline wires the stages together: parse the container,
// identify the player, locate tables, extract sequences, build typed
// instruments, and transcode into the target layout. One pipeline run
// owns its image and aggregate outright, so batch conversion runs
// files in parallel with no shared state.
package pipeline

import (
	"fmt"
	"log/slog"
	"sync"

	"sidrip/internal/locator"
	"sidrip/internal/memimage"
	"sidrip/internal/music"
	"sidrip/internal/player"
	"sidrip/internal/sequence"
	"sidrip/internal/sf2"
	"sidrip/internal/sidfile"
)

// Options selects per-run behavior the caller controls.
type Options struct {
	// Override names a catalogue profile to use instead of the
	// fingerprint result.
	Override string
	// Driver names the target template; empty means the default.
	Driver string
}

// Result is everything one file's run produced. Err is set only for
// fatal failures (unreadable container, unknown player); per-entity
// extraction failures live in Data.Problems.
type Result struct {
	Path       string
	File       *sidfile.File
	Profile    *player.Profile
	Data       *music.Data
	Buffer     []byte
	Validation sf2.Validation
	Err        error
}

// Extract recovers everything it can from the image: tables via the
// locator, order lists and sequences via the extractor, and typed
// instruments from the instrument table with their cross-references
// checked. Failures of individual entities are collected on the
// aggregate, never fatal.
func Extract(img *memimage.Image, profile *player.Profile) (*music.Data, error) {
	if profile == nil || profile.Unknown() {
		return nil, &player.UnknownPlayerError{Load: img.Load(), Size: img.Size()}
	}

	data := music.NewData(profile.ID)
	locator.LocateAll(img, profile, data)
	sequence.ExtractAll(img, profile, data)
	buildInstruments(data)

	slog.Debug("extraction finished",
		"player", profile.ID,
		"tables", len(data.Tables),
		"sequences", len(data.Sequences),
		"problems", len(data.Problems))
	return data, nil
}

// Instrument record byte layout shared by the known families:
// AD, SR, wave index, pulse index, filter index, pulse width, flags.
const (
	instAD = iota
	instSR
	instWave
	instPulse
	instFilter
	instPWLo
	instPWHi
	instFlags
)

// buildInstruments types the raw instrument table rows and validates
// their table indices. An index pointing past its target table fails
// that instrument alone; index 0 with an absent table is tolerated as
// "unused slot".
func buildInstruments(data *music.Data) {
	table := data.Table(music.TableInstrument)
	if table == nil {
		return
	}
	for i, row := range table.Rows {
		if len(row) < instFlags {
			data.AddProblem(fmt.Sprintf("instrument %d", i),
				fmt.Errorf("record of %d bytes, need at least %d", len(row), instFlags))
			continue
		}
		inst := music.Instrument{
			Index:      i,
			AD:         row[instAD],
			SR:         row[instSR],
			Wave:       row[instWave],
			Pulse:      row[instPulse],
			Filter:     row[instFilter],
			PulseWidth: uint16(row[instPWLo]) | uint16(row[instPWHi])<<8,
		}
		if len(row) > instFlags {
			inst.Flags = row[instFlags]
		}

		if err := checkIndex(data, music.TableWave, inst.Wave); err != nil {
			data.AddProblem(fmt.Sprintf("instrument %d", i), err)
			continue
		}
		if err := checkIndex(data, music.TablePulse, inst.Pulse); err != nil {
			data.AddProblem(fmt.Sprintf("instrument %d", i), err)
			continue
		}
		if err := checkIndex(data, music.TableFilter, inst.Filter); err != nil {
			data.AddProblem(fmt.Sprintf("instrument %d", i), err)
			continue
		}
		data.Instruments = append(data.Instruments, inst)
	}
}

func checkIndex(data *music.Data, kind music.TableKind, idx byte) error {
	t := data.Table(kind)
	if t == nil {
		if idx == 0 {
			return nil
		}
		return fmt.Errorf("%s index %d but no %s table was recovered", kind, idx, kind)
	}
	if int(idx) >= len(t.Rows) {
		return fmt.Errorf("%s index %d outside table of %d entries", kind, idx, len(t.Rows))
	}
	return nil
}

// Convert runs the whole pipeline for one file.
func Convert(path string, opts Options) *Result {
	res := &Result{Path: path}

	f, err := sidfile.Load(path)
	if err != nil {
		res.Err = err
		return res
	}
	res.File = f

	profile, err := player.Identify(f.Image, opts.Override)
	res.Profile = profile
	if err != nil {
		res.Err = err
		return res
	}

	data, err := Extract(f.Image, profile)
	if err != nil {
		res.Err = err
		return res
	}
	res.Data = data

	tpl := sf2.DefaultTemplate()
	if opts.Driver != "" {
		t, ok := sf2.TemplateByID(opts.Driver)
		if !ok {
			res.Err = fmt.Errorf("unknown driver template %q", opts.Driver)
			return res
		}
		tpl = t
	}

	res.Buffer, res.Validation = sf2.Transcode(data, tpl, sf2.Meta{
		Title:  f.Name,
		Author: f.Author,
	})
	return res
}

// ConvertAll converts files concurrently, workers at a time. Results
// keep the order of paths. The progress callback, when non-nil, runs
// once per finished file from the worker goroutines; it must be safe
// for concurrent use.
func ConvertAll(paths []string, opts Options, workers int, progress func(*Result)) []*Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]*Result, len(paths))

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = Convert(path, opts)
			if progress != nil {
				progress(results[i])
			}
		}(i, path)
	}
	wg.Wait()
	return results
}

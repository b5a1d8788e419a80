// Package verify scores transcoding fidelity by comparing two chip
// register write logs frame by frame. Frames are sparse: a register is
// present in a frame only when that tick wrote it, and absent registers
// implicitly carry their last value forward. Two frames are therefore
// equivalent when every register present in both carries the same value
// in both; which registers either frame happens to omit is never a
// comparison criterion on its own.
package verify

import (
	"fmt"
	"sort"
)

// NumRegisters is the size of the SID register file ($D400-$D418).
const NumRegisters = 25

// Frame is one playback tick's register writes. Regs maps register
// index 0-24 to the written value.
type Frame struct {
	Index int
	Regs  map[uint8]uint8
}

// Empty reports whether the frame wrote no registers.
func (f Frame) Empty() bool { return len(f.Regs) == 0 }

// ReportError reports a structurally invalid input log. Comparison
// never scores malformed logs.
type ReportError struct {
	Log   string
	Index int
	Msg   string
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("%s log: frame %d: %s", e.Log, e.Index, e.Msg)
}

// Equivalent applies the sparse frame equivalence rule: the frames
// match iff every register present in both carries equal values, or
// both frames are empty. Two non-empty frames with no register in
// common are not equivalent; there is no shared evidence either way,
// and treating that as a match would let a silent voice pass.
func Equivalent(a, b Frame) bool {
	if a.Empty() || b.Empty() {
		return a.Empty() && b.Empty()
	}
	common := false
	for reg, av := range a.Regs {
		bv, ok := b.Regs[reg]
		if !ok {
			continue
		}
		common = true
		if av != bv {
			return false
		}
	}
	return common
}

// RegDiff is one disagreeing register in a mismatched frame.
type RegDiff struct {
	Reg  uint8
	A, B uint8
}

// Mismatch describes one mismatched frame for diagnostics. Missing is
// true when the frame exists in only one log.
type Mismatch struct {
	Index   int
	Missing bool
	Diffs   []RegDiff
}

// Report is the verifier's product. A ratio below 1.0 is a result for
// human judgment, not an error.
type Report struct {
	Total      int
	Matched    int
	Ratio      float64
	Verdicts   []bool
	Mismatches []Mismatch
	// Truncated is true when more frames mismatched than the report
	// keeps diagnostics for.
	Truncated bool
}

// DefaultMismatchLimit bounds the diagnostics list when the caller
// passes no limit of its own.
const DefaultMismatchLimit = 16

// Compare scores the reconstructed log against the original. Both logs
// must have monotonically increasing frame indices starting at 0;
// anything else is a ReportError. limit bounds the mismatch
// diagnostics; 0 means DefaultMismatchLimit.
func Compare(orig, recon []Frame, limit int) (*Report, error) {
	if limit <= 0 {
		limit = DefaultMismatchLimit
	}
	a, err := normalize("original", orig)
	if err != nil {
		return nil, err
	}
	b, err := normalize("reconstructed", recon)
	if err != nil {
		return nil, err
	}

	total := len(a)
	if len(b) > total {
		total = len(b)
	}
	r := &Report{
		Total:    total,
		Verdicts: make([]bool, total),
	}

	for i := 0; i < total; i++ {
		switch {
		case i >= len(a) || i >= len(b):
			// A frame past the shorter log is always a mismatch.
			r.record(Mismatch{Index: i, Missing: true}, limit)
		case Equivalent(a[i], b[i]):
			r.Verdicts[i] = true
			r.Matched++
		default:
			r.record(diff(a[i], b[i]), limit)
		}
	}

	if total > 0 {
		r.Ratio = float64(r.Matched) / float64(total)
	} else {
		r.Ratio = 1.0
	}
	return r, nil
}

func (r *Report) record(m Mismatch, limit int) {
	if len(r.Mismatches) < limit {
		r.Mismatches = append(r.Mismatches, m)
	} else {
		r.Truncated = true
	}
}

// diff collects the registers present in both frames that disagree.
// For non-equivalent frames without common registers the diff list is
// empty; the mismatch stands on its own.
func diff(a, b Frame) Mismatch {
	m := Mismatch{Index: a.Index}
	for reg, av := range a.Regs {
		if bv, ok := b.Regs[reg]; ok && av != bv {
			m.Diffs = append(m.Diffs, RegDiff{Reg: reg, A: av, B: bv})
		}
	}
	sort.Slice(m.Diffs, func(i, j int) bool { return m.Diffs[i].Reg < m.Diffs[j].Reg })
	return m
}

// normalize validates a log's frame indices and fills index gaps with
// empty frames, so position i always means tick i. Indices must start
// at 0 (or the log be empty) and strictly increase.
func normalize(name string, frames []Frame) ([]Frame, error) {
	var out []Frame
	last := -1
	for _, f := range frames {
		if f.Index <= last {
			msg := "frame indices not monotonically increasing"
			if f.Index == last {
				msg = "duplicate frame index"
			}
			return nil, &ReportError{Log: name, Index: f.Index, Msg: msg}
		}
		if f.Index < 0 {
			return nil, &ReportError{Log: name, Index: f.Index, Msg: "negative frame index"}
		}
		for tick := last + 1; tick < f.Index; tick++ {
			out = append(out, Frame{Index: tick})
		}
		for reg := range f.Regs {
			if reg >= NumRegisters {
				return nil, &ReportError{Log: name, Index: f.Index, Msg: fmt.Sprintf("register %d out of range", reg)}
			}
		}
		out = append(out, f)
		last = f.Index
	}
	return out, nil
}

package verify

import (
	"errors"
	"testing"
)

func frame(index int, pairs ...uint8) Frame {
	f := Frame{Index: index}
	if len(pairs) > 0 {
		f.Regs = make(map[uint8]uint8, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			f.Regs[pairs[i]] = pairs[i+1]
		}
	}
	return f
}

func TestEquivalent(t *testing.T) {
	tests := []struct {
		name string
		a, b Frame
		want bool
	}{
		{
			name: "both empty",
			a:    frame(0),
			b:    frame(0),
			want: true,
		},
		{
			name: "empty against non-empty",
			a:    frame(0),
			b:    frame(0, 0, 0x22),
			want: false,
		},
		{
			name: "disjoint register sets",
			a:    frame(0, 0, 0x22),
			b:    frame(0, 4, 0x20),
			want: false,
		},
		{
			name: "common registers agree, extras ignored",
			a:    frame(0, 0, 0x22, 1, 0x01, 4, 0x20),
			b:    frame(0, 0, 0x22, 1, 0x01, 4, 0x20, 2, 0x00),
			want: true,
		},
		{
			name: "one common register disagrees",
			a:    frame(0, 0, 0x22, 1, 0x01),
			b:    frame(0, 0, 0x22, 1, 0x02),
			want: false,
		},
		{
			name: "single shared register agreeing",
			a:    frame(0, 24, 0x0F, 5, 0x09),
			b:    frame(0, 24, 0x0F, 6, 0x00),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equivalent(tt.a, tt.b); got != tt.want {
				t.Errorf("Equivalent() = %v, want %v", got, tt.want)
			}
			// The relation is symmetric by construction; hold it to that.
			if got := Equivalent(tt.b, tt.a); got != tt.want {
				t.Errorf("Equivalent() swapped = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEquivalentIsReflexive(t *testing.T) {
	frames := []Frame{
		frame(0),
		frame(1, 0, 0x22),
		frame(2, 0, 0x22, 1, 0x01, 4, 0x20, 24, 0x0F),
	}
	for _, f := range frames {
		if !Equivalent(f, f) {
			t.Errorf("Equivalent(f, f) = false for %+v", f)
		}
	}
}

func TestCompare(t *testing.T) {
	t.Run("identical logs score 1.0", func(t *testing.T) {
		log := []Frame{
			frame(0, 0, 0x22, 1, 0x01),
			frame(1, 4, 0x20),
			frame(2),
		}
		r, err := Compare(log, log, 0)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if r.Ratio != 1.0 || r.Matched != 3 || r.Total != 3 {
			t.Errorf("Compare() = ratio %.3f matched %d/%d, want 1.0 3/3", r.Ratio, r.Matched, r.Total)
		}
	})

	t.Run("length mismatch caps the ratio", func(t *testing.T) {
		orig := []Frame{frame(0, 0, 0x22), frame(1, 0, 0x23), frame(2, 0, 0x24)}
		recon := orig[:2]
		r, err := Compare(orig, recon, 0)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if r.Ratio >= 1.0 {
			t.Errorf("Ratio = %.3f, want < 1.0 on length mismatch", r.Ratio)
		}
		if r.Total != 3 || r.Matched != 2 {
			t.Errorf("matched %d/%d, want 2/3", r.Matched, r.Total)
		}
		last := r.Mismatches[len(r.Mismatches)-1]
		if last.Index != 2 || !last.Missing {
			t.Errorf("final mismatch = %+v, want missing frame 2", last)
		}
	})

	t.Run("mismatch diagnostics carry the differing pairs", func(t *testing.T) {
		orig := []Frame{frame(0, 0, 0x22, 1, 0x01)}
		recon := []Frame{frame(0, 0, 0x22, 1, 0x05)}
		r, err := Compare(orig, recon, 0)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if len(r.Mismatches) != 1 {
			t.Fatalf("Mismatches = %+v, want one", r.Mismatches)
		}
		d := r.Mismatches[0].Diffs
		if len(d) != 1 || d[0].Reg != 1 || d[0].A != 0x01 || d[0].B != 0x05 {
			t.Errorf("Diffs = %+v, want reg 1: 01 vs 05", d)
		}
	})

	t.Run("diagnostics list is bounded", func(t *testing.T) {
		var orig, recon []Frame
		for i := 0; i < 40; i++ {
			orig = append(orig, frame(i, 0, 0x10))
			recon = append(recon, frame(i, 0, 0x20))
		}
		r, err := Compare(orig, recon, 8)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if len(r.Mismatches) != 8 || !r.Truncated {
			t.Errorf("Mismatches = %d truncated %v, want 8 true", len(r.Mismatches), r.Truncated)
		}
		if r.Matched != 0 {
			t.Errorf("Matched = %d, want 0", r.Matched)
		}
	})

	t.Run("index gaps read as empty frames", func(t *testing.T) {
		// Original logs an empty tick explicitly; the reconstruction
		// skips the index entirely. Same meaning, must match.
		orig := []Frame{frame(0, 0, 0x22), frame(1), frame(2, 0, 0x23)}
		recon := []Frame{frame(0, 0, 0x22), frame(2, 0, 0x23)}
		r, err := Compare(orig, recon, 0)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if r.Ratio != 1.0 {
			t.Errorf("Ratio = %.3f, want 1.0", r.Ratio)
		}
	})

	t.Run("empty logs are vacuously equal", func(t *testing.T) {
		r, err := Compare(nil, nil, 0)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if r.Ratio != 1.0 || r.Total != 0 {
			t.Errorf("Compare(nil, nil) = ratio %.3f total %d, want 1.0 0", r.Ratio, r.Total)
		}
	})
}

func TestCompareMalformedLogs(t *testing.T) {
	good := []Frame{frame(0, 0, 0x22)}

	tests := []struct {
		name string
		bad  []Frame
	}{
		{"duplicate index", []Frame{frame(0), frame(1, 0, 1), frame(1, 0, 2)}},
		{"decreasing index", []Frame{frame(0), frame(5), frame(3)}},
		{"negative index", []Frame{frame(-1, 0, 1)}},
		{"register out of range", []Frame{frame(0, 25, 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var re *ReportError
			if _, err := Compare(tt.bad, good, 0); !errors.As(err, &re) {
				t.Errorf("Compare(bad, good) error = %v, want ReportError", err)
			}
			if _, err := Compare(good, tt.bad, 0); !errors.As(err, &re) {
				t.Errorf("Compare(good, bad) error = %v, want ReportError", err)
			}
		})
	}
}

// A 3000-frame run where the reconstruction writes a different (denser)
// sparse pattern over identical underlying values must score a perfect
// 1.0, not 2999/3000.
func TestCompareSparsePatternsDiffer(t *testing.T) {
	const frames = 3000
	const full = 1500 // one fully-populated frame in the original

	orig := make([]Frame, frames)
	recon := make([]Frame, frames)
	for i := 0; i < frames; i++ {
		v := uint8(i % 251)
		orig[i] = frame(i, 0, v)
		// The reconstruction repeats carried-forward values for
		// registers the original omits this tick.
		recon[i] = frame(i, 0, v, 2, 0x00, 11, 0x41)
	}
	orig[full].Regs = make(map[uint8]uint8, NumRegisters)
	for reg := uint8(0); reg < NumRegisters; reg++ {
		orig[full].Regs[reg] = reg
	}
	recon[full] = frame(full, 0, 0, 11, 11, 24, 24)

	r, err := Compare(orig, recon, 0)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if r.Ratio != 1.0 {
		t.Errorf("Ratio = %.5f, want exactly 1.0 (matched %d of %d)", r.Ratio, r.Matched, r.Total)
	}
}

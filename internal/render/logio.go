package render

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"sidrip/internal/verify"
)

// Text log format, one frame per line:
//
//	<frame>: <reg>=<val> <reg>=<val> ...
//
// All numbers hexadecimal, registers two digits. A frame that wrote
// nothing is a bare "<frame>:" line or is simply absent. Lines
// starting with '#' and blank lines are ignored.
//
// The binary variant packs the same records behind a "SRLG" magic:
// per frame a little-endian uint32 index, a count byte, then
// (register, value) pairs.

var binMagic = []byte("SRLG")

// WriteLog writes frames in the text format. Registers are emitted in
// ascending order so output is reproducible.
func WriteLog(w io.Writer, frames []verify.Frame) error {
	bw := bufio.NewWriter(w)
	for _, f := range frames {
		if _, err := fmt.Fprintf(bw, "%X:", f.Index); err != nil {
			return err
		}
		for _, reg := range sortedRegs(f) {
			if _, err := fmt.Fprintf(bw, " %02X=%02X", reg, f.Regs[reg]); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadLog parses the text format.
func ReadLog(data []byte) ([]verify.Frame, error) {
	var frames []verify.Frame
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, fmt.Errorf("line %d: no frame index", lineNo)
		}
		frameIdx, err := strconv.ParseInt(strings.TrimSpace(line[:idx]), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad frame index: %w", lineNo, err)
		}
		f := verify.Frame{Index: int(frameIdx)}
		for _, field := range strings.Fields(line[idx+1:]) {
			reg, val, ok := strings.Cut(field, "=")
			if !ok {
				return nil, fmt.Errorf("line %d: bad register write %q", lineNo, field)
			}
			r, err := strconv.ParseUint(reg, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad register %q: %w", lineNo, reg, err)
			}
			v, err := strconv.ParseUint(val, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad value %q: %w", lineNo, val, err)
			}
			if f.Regs == nil {
				f.Regs = make(map[uint8]uint8)
			}
			f.Regs[uint8(r)] = uint8(v)
		}
		frames = append(frames, f)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// WriteBinaryLog writes frames in the compact binary format.
func WriteBinaryLog(w io.Writer, frames []verify.Frame) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(binMagic); err != nil {
		return err
	}
	for _, f := range frames {
		var hdr [5]byte
		hdr[0] = byte(f.Index)
		hdr[1] = byte(f.Index >> 8)
		hdr[2] = byte(f.Index >> 16)
		hdr[3] = byte(f.Index >> 24)
		hdr[4] = byte(len(f.Regs))
		if _, err := bw.Write(hdr[:]); err != nil {
			return err
		}
		for _, reg := range sortedRegs(f) {
			if _, err := bw.Write([]byte{reg, f.Regs[reg]}); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadBinaryLog parses the binary format.
func ReadBinaryLog(data []byte) ([]verify.Frame, error) {
	if !bytes.HasPrefix(data, binMagic) {
		return nil, fmt.Errorf("not a binary register log (magic % X)", data[:min(4, len(data))])
	}
	pos := len(binMagic)
	var frames []verify.Frame
	for pos < len(data) {
		if pos+5 > len(data) {
			return nil, fmt.Errorf("truncated frame header at offset %d", pos)
		}
		f := verify.Frame{
			Index: int(uint32(data[pos]) | uint32(data[pos+1])<<8 | uint32(data[pos+2])<<16 | uint32(data[pos+3])<<24),
		}
		n := int(data[pos+4])
		pos += 5
		if pos+n*2 > len(data) {
			return nil, fmt.Errorf("truncated frame %d at offset %d", f.Index, pos)
		}
		if n > 0 {
			f.Regs = make(map[uint8]uint8, n)
			for i := 0; i < n; i++ {
				f.Regs[data[pos]] = data[pos+1]
				pos += 2
			}
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// LoadLog reads a log file, sniffing the binary magic.
func LoadLog(path string) ([]verify.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(data, binMagic) {
		return ReadBinaryLog(data)
	}
	return ReadLog(data)
}

func sortedRegs(f verify.Frame) []uint8 {
	regs := make([]uint8, 0, len(f.Regs))
	for r := range f.Regs {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })
	return regs
}

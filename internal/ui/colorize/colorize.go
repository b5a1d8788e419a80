// Package colorize renders located table bytes as hexdumps with chroma
// syntax highlighting, for the dump command's table previews. Colors
// honor SIDRIP_NO_COLOR.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// bytesPerLine is the hexdump row width.
const bytesPerLine = 16

// getHexLexer returns a lexer suited to hexdump text, if any is available
func getHexLexer() chroma.Lexer {
	candidates := []string{"hexdump", "plaintext"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// getHexStyle returns the dump style with fallbacks
func getHexStyle() *chroma.Style {
	candidates := []string{"dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Hexdump formats data as an address-prefixed hexdump. base is the
// absolute address of the first byte.
func Hexdump(data []byte, base uint16) string {
	var b strings.Builder
	for off := 0; off < len(data); off += bytesPerLine {
		end := off + bytesPerLine
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(&b, "%04X ", int(base)+off)
		for i := off; i < end; i++ {
			fmt.Fprintf(&b, " %02X", data[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ColorizeHexdump applies syntax highlighting to hexdump text
func ColorizeHexdump(dump string) (string, error) {
	// Check if colors are disabled
	if os.Getenv("SIDRIP_NO_COLOR") != "" {
		return dump, nil
	}

	lexer := getHexLexer()
	if lexer == nil {
		// Return plain text if no hexdump lexer available
		return dump, nil
	}

	style := getHexStyle()
	formatter := getTerminalFormatter()

	iterator, err := lexer.Tokenise(nil, dump)
	if err != nil {
		return dump, err
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return dump, err
	}

	return buf.String(), nil
}

// Table renders table rows as a colorized hexdump, one entry per line
// when entries are short enough, the plain dump otherwise.
func Table(rows [][]byte, base uint16, entrySize int) string {
	var b strings.Builder
	if entrySize > 0 && entrySize <= bytesPerLine {
		addr := int(base)
		for _, row := range rows {
			fmt.Fprintf(&b, "%04X ", addr)
			for _, v := range row {
				fmt.Fprintf(&b, " %02X", v)
			}
			b.WriteByte('\n')
			addr += entrySize
		}
	} else {
		var flat []byte
		for _, row := range rows {
			flat = append(flat, row...)
		}
		b.WriteString(Hexdump(flat, base))
	}

	out, err := ColorizeHexdump(b.String())
	if err != nil {
		return b.String()
	}
	return out
}

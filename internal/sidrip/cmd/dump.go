package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/bradleyjkemp/memviz"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"sidrip/internal/music"
	"sidrip/internal/pipeline"
	"sidrip/internal/player"
	"sidrip/internal/sidfile"
	"sidrip/internal/sidrip/styles"
	"sidrip/internal/ui/colorize"
)

var dumpAt hexAddr

var dumpCmd = &cobra.Command{
	Use:   "dump <file.sid>",
	Short: "Show what extraction recovers from a SID file",
	Long: `dump runs identification and extraction, then prints every recovered
table as an address-annotated hexdump together with the order lists
and sequences. Useful when a conversion looks wrong and you want to
see what the locator actually found.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		override, _ := cmd.Flags().GetString("player")
		length, _ := cmd.Flags().GetInt("length")
		useSpew, _ := cmd.Flags().GetBool("spew")
		dotPath, _ := cmd.Flags().GetString("dot")

		f, err := sidfile.Load(args[0])
		if err != nil {
			return err
		}

		// A raw window dump needs no identification at all.
		if cmd.Flags().Changed("at") {
			return dumpWindow(f, uint16(dumpAt), length)
		}

		profile, err := player.Identify(f.Image, override)
		if err != nil {
			return err
		}
		data, err := pipeline.Extract(f.Image, profile)
		if err != nil {
			return err
		}

		if useSpew {
			spew.Fdump(os.Stdout, data)
			return nil
		}
		if dotPath != "" {
			return writeDot(data, dotPath)
		}

		dumpData(f, profile, data)
		return nil
	},
}

func dumpWindow(f *sidfile.File, addr uint16, length int) error {
	if length <= 0 {
		length = 256
	}
	window, ok := f.Image.Slice(addr, length)
	if !ok {
		return fmt.Errorf("window $%04X+%d outside image $%04X..$%04X",
			addr, length, f.Image.Load(), f.Image.End())
	}
	dump := colorize.Hexdump(window, addr)
	out, err := colorize.ColorizeHexdump(dump)
	if err != nil {
		out = dump
	}
	fmt.Print(out)
	return nil
}

func dumpData(f *sidfile.File, profile *player.Profile, data *music.Data) {
	fmt.Printf("%s  %s (%s)\n\n", f.Name, profile.Name, profile.ID)

	kinds := make([]music.TableKind, 0, len(data.Tables))
	for kind := range data.Tables {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, kind := range kinds {
		t := data.Tables[kind]
		fmt.Printf("%s table, %d entries at %s (confidence %.2f)\n",
			kind, len(t.Rows),
			styles.Addr.Render(fmt.Sprintf("$%04X", t.Desc.Base)),
			t.Confidence)
		fmt.Print(colorize.Table(t.Rows, t.Desc.Base, t.Desc.EntrySize))
		fmt.Println()
	}

	for _, ol := range data.Orders {
		fmt.Printf("voice %d order list at %s, %d entries, restart %d\n",
			ol.Voice,
			styles.Addr.Render(fmt.Sprintf("$%04X", ol.Addr)),
			len(ol.Entries), ol.Restart)
	}
	fmt.Println()

	for _, seq := range data.Sequences {
		fmt.Printf("sequence %d at %s, %d event(s)\n",
			seq.Index,
			styles.Addr.Render(fmt.Sprintf("$%04X", seq.Addr)),
			len(seq.Events))
	}

	if len(data.Problems) > 0 {
		fmt.Println()
		for _, p := range data.Problems {
			fmt.Println(styles.Warn.Render(p.String()))
		}
	}
}

// writeDot renders the aggregate's object graph as graphviz input.
func writeDot(data *music.Data, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	memviz.Map(f, data)
	return nil
}

func init() {
	dumpCmd.Flags().StringP("player", "p", "",
		"Override driver identification with a catalogue profile ID")
	dumpCmd.Flags().Var(&dumpAt, "at", "Dump a raw memory window at this address instead")
	dumpCmd.Flags().IntP("length", "n", 256, "Window length for --at")
	dumpCmd.Flags().Bool("spew", false, "Dump the whole aggregate with go-spew")
	dumpCmd.Flags().String("dot", "", "Write the aggregate's object graph as graphviz dot")
	rootCmd.AddCommand(dumpCmd)
}

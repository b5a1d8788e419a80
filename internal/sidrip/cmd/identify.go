package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"sidrip/internal/player"
	"sidrip/internal/sidfile"
	"sidrip/internal/sidrip/styles"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <file.sid>...",
	Short: "Identify the music driver inside SID files",
	Long: `identify parses each SID container, matches the payload against the
player catalogue and reports which driver built the tune. An unknown
player is reported, not guessed at.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		override, _ := cmd.Flags().GetString("player")

		var b strings.Builder
		unknown := 0
		for _, path := range args {
			if err := identifyReport(&b, path, override); err != nil {
				var upe *player.UnknownPlayerError
				if !errors.As(err, &upe) {
					return err
				}
				unknown++
			}
		}

		out := b.String()
		if term.IsTerminal(os.Stdout.Fd()) {
			if r := styles.GetMarkdownRenderer(markdownWidth()); r != nil {
				if rendered, err := r.Render(out); err == nil {
					out = rendered
				}
			}
		}
		fmt.Print(out)

		if unknown > 0 {
			os.Exit(1)
		}
		return nil
	},
}

// identifyReport appends one file's markdown section. An unknown
// player still renders a section before the error comes back, so batch
// runs show every verdict.
func identifyReport(b *strings.Builder, path, override string) error {
	f, err := sidfile.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(b, "# %s\n\n", path)
	fmt.Fprintf(b, "- **Title**: %s\n", f.Name)
	fmt.Fprintf(b, "- **Author**: %s\n", f.Author)
	fmt.Fprintf(b, "- **Released**: %s\n", f.Released)
	fmt.Fprintf(b, "- **Format**: %s v%d, %d song(s), start %d\n",
		f.Magic, f.Version, f.Songs, f.StartSong)
	fmt.Fprintf(b, "- **Load**: `$%04X`  **Init**: `$%04X`  **Play**: `$%04X`  (%d bytes)\n",
		f.LoadAddr, f.InitAddr, f.PlayAddr, f.Image.Size())

	profile, err := player.Identify(f.Image, override)
	if profile != nil && !profile.Unknown() {
		fmt.Fprintf(b, "- **Player**: %s (`%s`)\n", profile.Name, profile.ID)
		fmt.Fprintf(b, "- **Encoding**: %s\n\n", profile.Encoding)
		return nil
	}
	fmt.Fprintf(b, "- **Player**: unknown, not in catalogue v%d\n\n", player.CatalogueVersion)
	return err
}

func markdownWidth() int {
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w <= 0 || w > 100 {
		return 100
	}
	return w
}

func init() {
	identifyCmd.Flags().StringP("player", "p", "",
		"Override driver identification with a catalogue profile ID")
	rootCmd.AddCommand(identifyCmd)
}

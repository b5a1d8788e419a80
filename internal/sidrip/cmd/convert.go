package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/v2/spinner"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/term"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"sidrip/internal/pipeline"
	"sidrip/internal/sidrip/styles"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.sid>...",
	Short: "Convert SID files into SF2 projects",
	Long: `convert runs the full pipeline on each file: identify the player,
recover tables and sequences, and write a validated SF2 project next
to the input (or where -o / -O say). Files are converted in parallel;
a file that fails never stops the rest of the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := pipeline.Options{}
		opts.Override, _ = cmd.Flags().GetString("player")
		opts.Driver, _ = cmd.Flags().GetString("driver")
		jobs, _ := cmd.Flags().GetInt("jobs")
		outPath, _ := cmd.Flags().GetString("output")
		outDir, _ := cmd.Flags().GetString("out-dir")
		dump, _ := cmd.Flags().GetBool("dump")

		if outPath != "" && len(args) > 1 {
			return fmt.Errorf("-o names a single output file, got %d inputs", len(args))
		}
		if jobs < 1 {
			jobs = runtime.NumCPU()
		}

		var results []*pipeline.Result
		if term.IsTerminal(os.Stdout.Fd()) && len(args) > 1 {
			results = convertWithProgress(args, opts, jobs)
		} else {
			results = pipeline.ConvertAll(args, opts, jobs, nil)
		}

		failed := 0
		for _, res := range results {
			if err := writeResult(res, outPath, outDir); err != nil {
				res.Err = err
			}
			printResult(res)
			if res.Err != nil {
				failed++
				continue
			}
			if dump && res.Data != nil {
				spew.Fdump(os.Stdout, res.Data)
			}
		}

		if failed > 0 {
			fmt.Printf("\n%s\n", styles.Fail.Render(
				fmt.Sprintf("%d of %d file(s) failed", failed, len(results))))
			os.Exit(1)
		}
		return nil
	},
}

// outputPath decides where one result's SF2 buffer goes.
func outputPath(res *pipeline.Result, outPath, outDir string) string {
	if outPath != "" {
		return outPath
	}
	base := strings.TrimSuffix(filepath.Base(res.Path), filepath.Ext(res.Path)) + ".sf2"
	if outDir != "" {
		return filepath.Join(outDir, base)
	}
	return filepath.Join(filepath.Dir(res.Path), base)
}

func writeResult(res *pipeline.Result, outPath, outDir string) error {
	if res.Err != nil || res.Buffer == nil {
		return res.Err
	}
	dst := outputPath(res, outPath, outDir)
	if err := os.WriteFile(dst, res.Buffer, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	res.Path = res.Path + " -> " + dst
	return nil
}

func printResult(res *pipeline.Result) {
	switch {
	case res.Err != nil:
		fmt.Printf("%s %s: %v\n", styles.Fail.Render("FAIL"), res.Path, res.Err)
	case !res.Validation.Conformant:
		fmt.Printf("%s %s\n", styles.Fail.Render("FAIL"), res.Path)
		for _, err := range res.Validation.Errors {
			fmt.Printf("     %s\n", styles.Dim.Render(err.Error()))
		}
	case len(res.Data.Problems) > 0:
		fmt.Printf("%s %s (%s, %d problem(s))\n",
			styles.Warn.Render("WARN"), res.Path, res.Profile.ID, len(res.Data.Problems))
		for _, p := range res.Data.Problems {
			fmt.Printf("     %s\n", styles.Dim.Render(p.String()))
		}
	default:
		fmt.Printf("%s %s (%s)\n", styles.Pass.Render("  OK"), res.Path, res.Profile.ID)
	}
}

// Progress UI. The batch runs in its own goroutine and feeds finished
// results to the model; the model only counts and spins.

type convertedMsg struct{ res *pipeline.Result }

type batchDoneMsg struct{ results []*pipeline.Result }

type convertModel struct {
	spinner spinner.Model
	total   int
	done    int
	failed  int
	last    string
	results []*pipeline.Result
}

func newConvertModel(total int) convertModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	return convertModel{spinner: s, total: total}
}

func (m convertModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m convertModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case convertedMsg:
		m.done++
		m.last = msg.res.Path
		if msg.res.Err != nil {
			m.failed++
		}
		return m, nil

	case batchDoneMsg:
		m.results = msg.results
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m convertModel) View() string {
	status := fmt.Sprintf("%s converting %d/%d", m.spinner.View(), m.done, m.total)
	if m.failed > 0 {
		status += " " + styles.Fail.Render(fmt.Sprintf("(%d failed)", m.failed))
	}
	if m.last != "" {
		status += "\n" + styles.Dim.Render(m.last)
	}
	return status + "\n"
}

func convertWithProgress(paths []string, opts pipeline.Options, jobs int) []*pipeline.Result {
	p := tea.NewProgram(newConvertModel(len(paths)))

	go func() {
		results := pipeline.ConvertAll(paths, opts, jobs, func(res *pipeline.Result) {
			p.Send(convertedMsg{res: res})
		})
		p.Send(batchDoneMsg{results: results})
	}()

	final, err := p.Run()
	if err == nil {
		if m, ok := final.(convertModel); ok && m.results != nil {
			return m.results
		}
	}
	// TUI failed or was interrupted before the batch finished; run the
	// batch again without it.
	return pipeline.ConvertAll(paths, opts, jobs, nil)
}

func init() {
	convertCmd.Flags().StringP("driver", "D", "", "Target driver template ID")
	convertCmd.Flags().StringP("player", "p", "",
		"Override driver identification with a catalogue profile ID")
	convertCmd.Flags().IntP("jobs", "j", 0, "Parallel conversions (default: CPU count)")
	convertCmd.Flags().StringP("output", "o", "", "Output file (single input only)")
	convertCmd.Flags().StringP("out-dir", "O", "", "Output directory")
	convertCmd.Flags().Bool("dump", false, "Dump the extracted music data after converting")
	rootCmd.AddCommand(convertCmd)
}

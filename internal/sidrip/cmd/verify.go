package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sidrip/internal/render"
	"sidrip/internal/sidrip/styles"
	"sidrip/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <original.log> <reconstructed.log>",
	Short: "Score a conversion against the original register log",
	Long: `verify compares two chip register write logs frame by frame and
reports how much of the reconstruction matches the original. Exits
with status 1 unless every frame matches.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		orig, err := render.LoadLog(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		recon, err := render.LoadLog(args[1])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}

		report, err := verify.Compare(orig, recon, limit)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			printReport(report)
		}

		if report.Matched < report.Total {
			os.Exit(1)
		}
		return nil
	},
}

func printReport(r *verify.Report) {
	verdict := styles.Pass.Render("PERFECT")
	if r.Matched < r.Total {
		verdict = styles.Fail.Render("MISMATCH")
	}
	fmt.Printf("%s  %d/%d frames match (%.2f%%)\n",
		verdict, r.Matched, r.Total, r.Ratio*100)

	for _, m := range r.Mismatches {
		if m.Missing {
			fmt.Printf("  frame %5d: %s\n", m.Index, styles.Dim.Render("missing"))
			continue
		}
		var parts []string
		for _, d := range m.Diffs {
			parts = append(parts, fmt.Sprintf("%02X: %02X != %02X", d.Reg, d.A, d.B))
		}
		fmt.Printf("  frame %5d: %s\n", m.Index, strings.Join(parts, "  "))
	}
	if r.Truncated {
		fmt.Println(styles.Dim.Render("  ... more mismatches not shown"))
	}
}

func init() {
	verifyCmd.Flags().IntP("limit", "l", verify.DefaultMismatchLimit,
		"Maximum mismatching frames to detail")
	verifyCmd.Flags().Bool("json", false, "Emit the report as JSON")
	rootCmd.AddCommand(verifyCmd)
}

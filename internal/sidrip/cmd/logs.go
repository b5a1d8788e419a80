package cmd

import (
	"fmt"
	"os"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"

	"sidrip/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the latest sidrip debug log",
	Long: `logs prints the newest sidrip debug log file from the working
directory. Debug logs are written when SIDRIP_LOG_TO_FILE=1 is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")

		path := logging.LatestLogFile()
		if path == "" {
			return fmt.Errorf("no sidrip debug logs found; run with SIDRIP_LOG_TO_FILE=1")
		}

		if !follow {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			os.Stdout.Write(data)
			return nil
		}

		t, err := tail.TailFile(path, tail.Config{
			Follow: true,
			ReOpen: true,
			Logger: tail.DiscardingLogger,
		})
		if err != nil {
			return err
		}
		defer t.Cleanup()

		for {
			select {
			case line, ok := <-t.Lines:
				if !ok {
					return t.Err()
				}
				if line.Err != nil {
					return line.Err
				}
				fmt.Println(line.Text)
			case <-cmd.Context().Done():
				return nil
			}
		}
	},
}

func init() {
	logsCmd.Flags().BoolP("follow", "f", false, "Keep watching the log for new lines")
	rootCmd.AddCommand(logsCmd)
}

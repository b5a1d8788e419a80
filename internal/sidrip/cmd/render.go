package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sidrip/internal/render"
)

var renderCmd = &cobra.Command{
	Use:   "render <file.sid>",
	Short: "Replay a SID file and capture its register write log",
	Long: `render drives an external chip-accurate replayer and saves the
register write log it produces. The log is what verify compares; run
render on both the original file and the converted one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		renderer, _ := cmd.Flags().GetString("renderer")
		seconds, _ := cmd.Flags().GetInt("seconds")
		song, _ := cmd.Flags().GetInt("song")
		outPath, _ := cmd.Flags().GetString("output")
		binary, _ := cmd.Flags().GetBool("binary")

		if outPath == "" {
			ext := ".log"
			if binary {
				ext = ".srlg"
			}
			outPath = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ext
		}

		r := &render.Renderer{Path: renderer, Seconds: seconds, Song: song}

		// Give the replayer a grace period past the requested play time
		// before the context kills it.
		ctx, cancel := context.WithTimeout(cmd.Context(),
			time.Duration(seconds+30)*time.Second)
		defer cancel()

		frames, err := r.Run(ctx, args[0])
		if err != nil {
			if render.IsTimeout(err) {
				return fmt.Errorf("renderer did not finish within %ds: %w", seconds+30, err)
			}
			return err
		}

		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()

		if binary {
			err = render.WriteBinaryLog(f, frames)
		} else {
			err = render.WriteLog(f, frames)
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d frame(s) -> %s\n", args[0], len(frames), outPath)
		return nil
	},
}

func init() {
	renderCmd.Flags().String("renderer", "siddump", "Register-logging replayer executable")
	renderCmd.Flags().IntP("seconds", "t", 60, "Seconds of playback to capture")
	renderCmd.Flags().IntP("song", "a", 0, "Subtune to play, 1-based (0 = file default)")
	renderCmd.Flags().StringP("output", "o", "", "Log output path")
	renderCmd.Flags().Bool("binary", false, "Write the compact binary log format")
	rootCmd.AddCommand(renderCmd)
}

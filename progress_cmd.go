package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/treefix50/streamit/internal/progressio"
	"github.com/treefix50/streamit/internal/watchstate"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the watch progress to a date-stamped JSON backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, opened, err := openWatchStore(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer opened.close()

		export, err := progressio.ExportState(ctx, store, time.Now())
		if err != nil {
			return err
		}
		path := exportOutput
		if path == "" {
			path = export.Filename
		} else if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, export.Filename)
		}
		if path == "-" {
			_, err = cmd.OutOrStdout().Write(export.Data)
			return err
		}
		if err := os.WriteFile(path, export.Data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s (blake2b-256 %s)\n", path, export.Checksum)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the watch progress with a JSON backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		store, opened, err := openWatchStore(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer opened.close()

		counts, err := progressio.Import(ctx, store, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d films and %d series\n", counts.FilmsCount, counts.SeriesCount)
		return nil
	},
}

var (
	progressWatched bool
	progressTime    float64
	progressSet     bool
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect or set stored progress offline",
}

var progressFilmCmd = &cobra.Command{
	Use:   "film <title>",
	Short: "Show or set a film's progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, opened, err := openWatchStore(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer opened.close()

		if progressSet {
			if err := store.SetFilmProgress(ctx, args[0], progressWatched, progressTime); err != nil {
				return err
			}
		}
		return printProgress(cmd, store.FilmProgress(ctx, args[0]))
	},
}

var progressEpisodeCmd = &cobra.Command{
	Use:   "episode <series> <season> <index>",
	Short: "Show or set an episode's progress (index is zero-based)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("episode index %q is not an integer", args[2])
		}
		ctx := cmd.Context()
		store, opened, err := openWatchStore(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer opened.close()

		if progressSet {
			if err := store.SetEpisodeProgress(ctx, args[0], args[1], index, progressWatched, progressTime); err != nil {
				return err
			}
		}
		return printProgress(cmd, store.EpisodeProgress(ctx, args[0], args[1], index))
	},
}

func printProgress(cmd *cobra.Command, p watchstate.Progress) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(p)
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file or directory (\"-\" for stdout)")

	for _, c := range []*cobra.Command{progressFilmCmd, progressEpisodeCmd} {
		c.Flags().BoolVar(&progressSet, "set", false, "write the given progress before printing")
		c.Flags().BoolVar(&progressWatched, "watched", false, "mark as watched")
		c.Flags().Float64Var(&progressTime, "time", 0, "resume offset in seconds")
	}
	progressCmd.AddCommand(progressFilmCmd, progressEpisodeCmd)
}

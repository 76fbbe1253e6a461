package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/LdDl/featrack-go/config"
	"github.com/LdDl/featrack-go/featrack"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	configPath string
	framesPath string
	outputPath string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   "featrack-replay",
		Short: "Replays pre-computed feature observations through the feature tracker",
		Long: `featrack-replay feeds frames with known features and descriptors
to the feature tracker in file order (out of order frames are allowed)
and writes the resulting tracks as CSV.`,
		SilenceUsage: true,
		RunE:         runReplay,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "tracker configuration YAML (defaults to replay detector/extractor)")
	rootCmd.Flags().StringVarP(&framesPath, "frames", "f", "", "frames YAML file")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output CSV file (stdout when empty)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	_ = rootCmd.MarkFlagRequired("frames")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	tracker, err := config.Build(cfg, logger)
	if err != nil {
		return err
	}
	frames, err := loadFrames(framesPath)
	if err != nil {
		return err
	}
	set, err := replay(tracker, frames)
	if err != nil {
		return err
	}
	logger.Info("featrack-replay: done", "frames", len(frames), "tracks", set.Size())

	var out io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return errors.Wrapf(err, "Can't create output '%s'", outputPath)
		}
		defer file.Close()
		out = file
	}
	return writeTracksCSV(out, set)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	cfg.Detector.Type = "replay"
	cfg.Extractor.Type = "replay"
	return cfg, nil
}

func replay(tracker *featrack.FeatureTracker, frames []FrameRecord) (*featrack.TrackSet, error) {
	var set *featrack.TrackSet
	for _, record := range frames {
		next, err := tracker.Track(set, record.Frame, replayImage{record: record}, nil)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", record.Frame, err)
		}
		set = next
	}
	return set, nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"media-index/internal/database"
	"media-index/internal/handlers"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/memory"
	"media-index/internal/metadata"
	"media-index/internal/startup"
)

// errRatingNotStored is returned by the rate command when the store did not
// accept the rating.
var errRatingNotStored = errors.New("rating not stored")

// configFlags are the settings one-shot commands accept on the command line.
// A flag only takes effect when it was set explicitly.
type configFlags struct {
	mediaDir    string
	databaseDir string
	folders     []string
	maxDepth    int
	noGeocode   bool
	noFileWrite bool
}

func (f *configFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.mediaDir, "media-dir", "", "media root (overrides MEDIA_DIR)")
	fs.StringVar(&f.databaseDir, "database-dir", "", "database directory (overrides DATABASE_DIR)")
	fs.StringSliceVar(&f.folders, "folder", nil, "sub-folder of the media root to scan, repeatable (overrides WATCHED_FOLDERS)")
	fs.IntVar(&f.maxDepth, "max-depth", -1, "maximum directory depth, 0 for the folder itself, -1 for unlimited (overrides MAX_DEPTH)")
	fs.BoolVar(&f.noGeocode, "no-geocode", false, "disable reverse geocoding")
	fs.BoolVar(&f.noFileWrite, "no-file-write", false, "store ratings in the database only")
}

func (f *configFlags) apply(fs *pflag.FlagSet, cfg *startup.Config) error {
	if fs.Changed("media-dir") {
		cfg.MediaDir = f.mediaDir
	}
	if fs.Changed("database-dir") {
		cfg.DatabaseDir = f.databaseDir
	}
	if fs.Changed("folder") {
		cfg.WatchedFolders = f.folders
	}
	if fs.Changed("max-depth") {
		cfg.MaxDepth = max(f.maxDepth, -1)
	}
	if f.noGeocode {
		cfg.GeocodeEnabled = false
	}
	if f.noFileWrite {
		cfg.WriteRatingsToFile = false
	}
	return cfg.ResolvePaths()
}

func newRootCmd() *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:           "media-index",
		Short:         "Index a media library into SQLite with EXIF, video and place metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if cmd.Flags().Changed("log-level") || cmd.Flags().Changed("log-format") {
				level := logging.GetLevel()
				if logLevel != "" {
					level = logging.ParseLevel(logLevel)
				}
				logging.Configure(os.Stderr, level, logFormat)
			}
			memory.ConfigureFromEnv()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "json or console (overrides LOG_FORMAT)")

	root.AddCommand(
		newServeCmd(),
		newScanCmd(),
		newStatsCmd(),
		newRateCmd(),
		newRandomCmd(),
		newVersionCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startTime := time.Now()

			cfg, err := startup.LoadConfig()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, startTime)
		},
	}
}

// withApp parses configuration, applies flags and runs fn against a freshly
// opened app that is closed afterwards.
func withApp(cmd *cobra.Command, flags *configFlags, fn func(ctx context.Context, a *app) error) error {
	cfg, err := startup.ParseConfig()
	if err != nil {
		return err
	}
	if err := flags.apply(cmd.Flags(), cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func newScanCmd() *cobra.Command {
	flags := &configFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the media library once and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				result := a.indexer.Scan(ctx, a.cfg.ScanJob())
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if result.Err != nil {
					return fmt.Errorf("scan %s: %w", result.Status, result.Err)
				}
				return nil
			})
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newStatsCmd() *cobra.Command {
	flags := &configFlags{}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print library statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return printJSON(cmd.OutOrStdout(), a.indexer.Stats(ctx))
			})
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newRateCmd() *cobra.Command {
	flags := &configFlags{}
	cmd := &cobra.Command{
		Use:   "rate <path> <rating>",
		Short: "Set the 0-5 star rating of an indexed file (0 clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil || !metadata.ValidRating(rating) {
				return fmt.Errorf("rating must be an integer between 0 and 5, got %q", args[1])
			}

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				ok := a.indexer.WriteRating(ctx, args[0], rating)
				if err := printJSON(cmd.OutOrStdout(), map[string]bool{"success": ok}); err != nil {
					return err
				}
				if !ok {
					return errRatingNotStored
				}
				return nil
			})
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newRandomCmd() *cobra.Command {
	var (
		flags    = &configFlags{}
		folder   string
		fileType string
		from, to string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "random",
		Short: "Print a random sample of indexed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := database.RandomOptions{Folder: folder, Limit: limit}
			if fileType != "" {
				ft, ok := mediatypes.ParseFileType(fileType)
				if !ok {
					return fmt.Errorf("--type must be image or video, got %q", fileType)
				}
				opts.Type = ft
			}
			var err error
			if opts.From, err = handlers.ParseDate(from, false); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if opts.To, err = handlers.ParseDate(to, true); err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				recs, err := a.db.RandomFiles(ctx, opts)
				if err != nil {
					return err
				}
				if recs == nil {
					recs = []database.MediaRecord{}
				}
				return printJSON(cmd.OutOrStdout(), recs)
			})
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&folder, "in", "", "restrict to a folder and its sub-folders")
	cmd.Flags().StringVar(&fileType, "type", "", "image or video")
	cmd.Flags().StringVar(&from, "from", "", "earliest capture date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "latest capture date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().IntVar(&limit, "limit", 0, fmt.Sprintf("number of files, at most %d (default 10)", database.MaxRandomLimit))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), startup.GetBuildInfo())
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

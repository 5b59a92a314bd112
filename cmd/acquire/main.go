package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hls-reconstructor/internal/orchestrator"
	"hls-reconstructor/internal/platform/config"
	"hls-reconstructor/internal/platform/logger"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type options struct {
	acq       config.Acquire
	logLevel  string
	logFormat string
}

func runE(opts *options) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log := logger.NewTo(os.Stderr, opts.logLevel, opts.logFormat)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pipeline, err := orchestrator.NewDefaultPipeline(opts.acq, log, nil)
		if err != nil {
			return err
		}
		out, err := pipeline.Run(ctx, orchestrator.Request{
			Source:  args[0],
			Browser: opts.acq.Browser,
			OutRoot: opts.acq.OutRoot,
		}, nil)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), out.Artifact)
		if out.Path == orchestrator.PathFallback {
			fmt.Fprintf(cmd.ErrOrStderr(), "Reconstructed %d segments (%s)\n", out.Segments, humanize.Bytes(uint64(out.Bytes)))
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "See: %s\n", out.TargetDir)
		return nil
	}
}

func newRootCmd() *cobra.Command {
	_ = config.Load()
	opts := &options{acq: config.LoadAcquire()}

	rootCmd := &cobra.Command{
		Use:           "acquire [source-url]",
		Short:         "Acquire an HLS audio stream into a single seekable audio file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runE(opts),
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.acq.Browser, "browser", "b", opts.acq.Browser, "Browser whose cookies authenticate the source (empty disables)")
	flags.StringVarP(&opts.acq.OutRoot, "out-root", "o", opts.acq.OutRoot, "Output root directory")
	flags.StringVar(&opts.acq.Ext, "ext", opts.acq.Ext, "Artifact container extension (m4a, mka, aac, ts)")
	flags.IntVar(&opts.acq.FetchConcurrency, "concurrency", opts.acq.FetchConcurrency, "Number of concurrent segment downloads")
	flags.IntVar(&opts.acq.FetchRetries, "retries", opts.acq.FetchRetries, "Retries per segment after the first attempt")
	flags.Float64Var(&opts.acq.FetchRPS, "rps", opts.acq.FetchRPS, "Maximum requests per second to the origin (0 disables pacing)")
	flags.DurationVar(&opts.acq.FetchTimeout, "timeout", opts.acq.FetchTimeout, "Timeout of a single HTTP request")
	flags.StringToStringVar(&opts.acq.FetchHeaders, "header", nil, "Extra request header for playlist and segment fetches (key=value, repeatable)")
	flags.StringVar(&opts.acq.FFmpegPath, "ffmpeg", opts.acq.FFmpegPath, "Path to ffmpeg executable")
	flags.StringVar(&opts.acq.YTDLPPath, "yt-dlp", opts.acq.YTDLPPath, "Path to yt-dlp executable")
	flags.BoolVar(&opts.acq.SkipDirect, "skip-direct", opts.acq.SkipDirect, "Skip direct acquisition and always reconstruct from segments")
	flags.StringVar(&opts.logLevel, "log-level", config.GetEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", config.GetEnv("LOG_FORMAT", "text"), "Log format (text, json)")

	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// DefaultFormat prefers an audio-only rendition.
const DefaultFormat = "bestaudio/best"

// printTemplate makes yt-dlp emit one tab-separated line per entry. The
// title goes last since it is the only field that may itself contain a tab.
const printTemplate = "%(url)s\t%(id)s\t%(title)s"

// YTDLPConfig configures the yt-dlp backed Service.
type YTDLPConfig struct {
	// Executable is the yt-dlp binary. Empty uses the one on PATH.
	Executable string
	// Format is the yt-dlp format selector.
	Format string
}

// YTDLP implements Service by invoking yt-dlp.
type YTDLP struct {
	cfg YTDLPConfig
	log *slog.Logger
}

// NewYTDLP returns a yt-dlp backed Service.
func NewYTDLP(cfg YTDLPConfig, log *slog.Logger) *YTDLP {
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	return &YTDLP{cfg: cfg, log: log}
}

func (y *YTDLP) command(auth Auth) *ytdlp.Command {
	cmd := ytdlp.New().
		NoPlaylist().
		NoProgress().
		Format(y.cfg.Format)
	if y.cfg.Executable != "" {
		cmd = cmd.SetExecutable(y.cfg.Executable)
	}
	if auth.Browser != "" {
		cmd = cmd.CookiesFromBrowser(auth.Browser)
	}
	return cmd
}

// Resolve implements Service.Resolve.
func (y *YTDLP) Resolve(ctx context.Context, source string, auth Auth) (Resolved, error) {
	res, err := y.command(auth).Print(printTemplate).Run(ctx, source)
	if err != nil {
		return Resolved{}, &ResolutionError{Source: source, Err: withStderr(err, res)}
	}
	resolved, err := parseResolveOutput(res.Stdout)
	if err != nil {
		return Resolved{}, &ResolutionError{Source: source, Err: err}
	}
	y.log.Debug("stream resolved",
		slog.String("source", source),
		slog.String("id", resolved.ID),
		slog.String("base_name", resolved.BaseName))
	return resolved, nil
}

// AcquireDirect implements Service.AcquireDirect. The audio is extracted to
// the extension of target; every file yt-dlp created for it is removed on
// failure.
func (y *YTDLP) AcquireDirect(ctx context.Context, source string, auth Auth, target string) error {
	ext := strings.TrimPrefix(filepath.Ext(target), ".")
	if ext == "" {
		return &DirectError{Err: fmt.Errorf("target %q has no extension", target)}
	}
	stem := strings.TrimSuffix(target, "."+ext)

	res, err := y.command(auth).
		ExtractAudio().
		AudioFormat(ext).
		ForceOverwrites().
		Output(stem + ".%(ext)s").
		Run(ctx, source)
	if err == nil {
		if info, statErr := os.Stat(target); statErr != nil {
			err = fmt.Errorf("expected output missing: %w", statErr)
		} else if info.Size() == 0 {
			err = errors.New("expected output is empty")
		}
	}
	if err != nil {
		removeStem(stem)
		derr := &DirectError{Err: withStderr(err, res)}
		if res != nil {
			derr.ExitCode = res.ExitCode
		}
		return derr
	}
	return nil
}

// parseResolveOutput reads the first non-empty printed line.
func parseResolveOutput(stdout string) (Resolved, error) {
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			return Resolved{}, fmt.Errorf("unexpected extractor output %q", line)
		}
		mediaURL, id, title := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
		if mediaURL == "" || mediaURL == "NA" {
			return Resolved{}, errors.New("no playable media url")
		}
		if title == "NA" {
			title = ""
		}
		return Resolved{
			BaseName: BaseName(title, id),
			MediaURL: mediaURL,
			ID:       id,
			Title:    title,
		}, nil
	}
	return Resolved{}, errors.New("extractor returned no stream")
}

func withStderr(err error, res *ytdlp.Result) error {
	if res == nil {
		return err
	}
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		return err
	}
	if lines := strings.Split(msg, "\n"); len(lines) > 3 {
		msg = strings.Join(lines[len(lines)-3:], "\n")
	}
	return fmt.Errorf("%w: %s", err, msg)
}

func removeStem(stem string) {
	matches, _ := filepath.Glob(globEscape(stem) + ".*")
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

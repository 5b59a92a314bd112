package config

import (
	"os"
	"path/filepath"
	"time"
)

// Acquire holds the settings of the acquisition pipeline.
type Acquire struct {
	OutRoot string
	Browser string
	Ext     string

	YTDLPPath  string
	FFmpegPath string

	FetchConcurrency int
	FetchRetries     int
	FetchBackoff     time.Duration
	FetchMaxBackoff  time.Duration
	FetchRPS         float64
	FetchTimeout     time.Duration
	// FetchHeaders are added to every playlist and segment request.
	FetchHeaders map[string]string

	// SkipDirect forces chunked reconstruction.
	SkipDirect bool
}

// LoadAcquire reads Acquire from the environment, applying defaults.
func LoadAcquire() Acquire {
	return Acquire{
		OutRoot:          GetEnv("OUT_ROOT", DefaultOutRoot()),
		Browser:          GetEnv("BROWSER", "chrome"),
		Ext:              GetEnv("AUDIO_EXT", "m4a"),
		YTDLPPath:        GetEnv("YTDLP_PATH", ""),
		FFmpegPath:       GetEnv("FFMPEG_PATH", ""),
		FetchConcurrency: GetEnvInt("FETCH_CONCURRENCY", 8),
		FetchRetries:     GetEnvInt("FETCH_RETRIES", 3),
		FetchBackoff:     GetEnvDuration("FETCH_BACKOFF", 500*time.Millisecond),
		FetchMaxBackoff:  GetEnvDuration("FETCH_MAX_BACKOFF", 5*time.Second),
		FetchRPS:         GetEnvFloat("FETCH_RPS", 20),
		FetchTimeout:     GetEnvDuration("FETCH_TIMEOUT", 60*time.Second),
		SkipDirect:       GetEnvBool("SKIP_DIRECT", false),
	}
}

// DefaultOutRoot is ~/Downloads/spaces, or ./spaces without a home directory.
func DefaultOutRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "spaces"
	}
	return filepath.Join(home, "Downloads", "spaces")
}

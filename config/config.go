package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for a download run
type Config struct {
	// Output layout
	Root        string // Root directory for songs
	RootPodcast string // Root directory for podcasts
	LedgerPath  string // Path of the resume ledger store

	// Source selection
	URL      string // Specific track/album/playlist/episode URL
	Liked    bool   // Download the user's liked songs
	Playlist bool   // Pick one of the user's playlists
	Limit    int    // Result cap per search category

	// Pipeline behavior
	DisableSkip bool   // Re-download even when the ledger has a verified entry
	Format      string // Output format: mp3 or wav
	Concurrency int    // Bound on in-flight downloads
	FFmpegPath  string // Transcoder binary

	// Collaborators
	ClientID          string // Spotify client id
	ClientSecret      string // Spotify client secret
	RefreshToken      string // Spotify refresh token
	StreamGatewayAddr string // host:port of the local stream gateway

	LogLevel string // Logging level (DEBUG, INFO, WARN, ERROR)
}

// LoadConfig loads and validates the run configuration from environment variables
// Returns a Config struct or an error if validation fails
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	validator := NewEnvValidator()

	if err := validator.ValidateRequired(); err != nil {
		return nil, fmt.Errorf("environment validation failed: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	defaultRoot := filepath.Join(home, "spotify-dlx", "songs")
	defaultPodcast := filepath.Join(home, "spotify-dlx", "podcasts")

	limit, err := validator.GetInt("LIMIT", 10)
	if err != nil {
		return nil, err
	}
	concurrency, err := validator.GetInt("CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	root := validator.GetString("ROOT", defaultRoot)

	cfg := &Config{
		Root:              root,
		RootPodcast:       validator.GetString("ROOT_PODCAST", defaultPodcast),
		LedgerPath:        validator.GetString("LEDGER_PATH", filepath.Join(root, ".spotify-dlx.db")),
		URL:               os.Getenv("URL"),
		Liked:             validator.GetBool("LIKED", false),
		Playlist:          validator.GetBool("PLAYLIST", false),
		Limit:             limit,
		DisableSkip:       validator.GetBool("DISABLE_SKIP", false),
		Format:            validator.GetString("FORMAT", "mp3"),
		Concurrency:       concurrency,
		FFmpegPath:        validator.GetString("FFMPEG_PATH", "ffmpeg"),
		ClientID:          os.Getenv("SPOTIFY_CLIENT_ID"),
		ClientSecret:      os.Getenv("SPOTIFY_CLIENT_SECRET"),
		RefreshToken:      os.Getenv("SPOTIFY_REFRESH_TOKEN"),
		StreamGatewayAddr: validator.GetString("STREAM_GATEWAY_URL", "127.0.0.1:9790"),
		LogLevel:          validator.GetString("LOG_LEVEL", "INFO"),
	}

	return cfg, nil
}

// Validate performs additional validation on the loaded configuration
func (c *Config) Validate() error {
	if c.Format != "mp3" && c.Format != "wav" {
		return fmt.Errorf("%s is currently not supported. Select from wav or mp3", c.Format)
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be a positive integer, got: %d", c.Concurrency)
	}

	if c.Limit <= 0 {
		return fmt.Errorf("limit must be a positive integer, got: %d", c.Limit)
	}

	validLogLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s. Valid levels are: DEBUG, INFO, WARN, ERROR", c.LogLevel)
	}

	return nil
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ozora-ogino/spotify-dlx/config"
	"github.com/ozora-ogino/spotify-dlx/downloader"
	"github.com/ozora-ogino/spotify-dlx/ledger"
	"github.com/ozora-ogino/spotify-dlx/spotify"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.Green("spotify-dlx")
	fmt.Println()

	session, err := spotify.NewAuthenticator(logger).Authenticate(ctx, spotify.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: cfg.RefreshToken,
	})
	if err != nil {
		color.Red("Failed to login. Check if your credentials are correct.")
		logger.Fatal("authentication failed", zap.Error(err))
	}

	catalog := spotify.NewClient(session, logger)

	source, err := pickSource(ctx, cfg, catalog)
	if err != nil {
		logger.Fatal("no downloadable source", zap.Error(err))
	}

	format, err := downloader.ParseFormat(cfg.Format)
	if err != nil {
		logger.Fatal("invalid format", zap.Error(err))
	}

	resolver := spotify.NewResolver(catalog, cfg.Root, cfg.RootPodcast, format, logger)
	descriptors, err := resolver.Resolve(ctx, source)
	if err != nil {
		// Resolution failures abort the run: there are no jobs to process.
		logger.Fatal("resolution failed", zap.Error(err))
	}
	if len(descriptors) == 0 {
		color.Yellow("Nothing to download.")
		return
	}

	store := ledger.Open(cfg.LedgerPath, logger)
	defer store.Close()

	terminal := downloader.NewTerminalReporter(os.Stdout)
	reporter := downloader.MultiReporter{terminal, downloader.NewLogReporter(logger)}

	fetcher := spotify.NewStreamClient(cfg.StreamGatewayAddr, session, logger)
	bitrate := downloader.BitrateStandard
	if session.Premium {
		bitrate = downloader.BitratePremium
	}
	transcoder := downloader.NewFFmpegTranscoder(cfg.FFmpegPath, bitrate, logger)
	worker := downloader.NewWorker(fetcher, transcoder, reporter, logger)
	scheduler := downloader.NewScheduler(worker, store, reporter, logger, cfg.Concurrency, !cfg.DisableSkip)

	summary, runErr := scheduler.Run(ctx, descriptors)
	terminal.PrintSummary(summary)

	if runErr != nil && errors.Is(runErr, context.Canceled) {
		color.Yellow("Run cancelled.")
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// pickSource chooses the run's source: an explicit URL wins, then liked
// songs, then interactive playlist selection, then interactive search.
func pickSource(ctx context.Context, cfg *config.Config, catalog *spotify.Client) (spotify.Source, error) {
	switch {
	case cfg.URL != "":
		return spotify.Source{URL: cfg.URL}, nil

	case cfg.Liked:
		color.Green(">>> Downloading your liked songs >>>")
		return spotify.Source{Liked: true}, nil

	case cfg.Playlist:
		return pickPlaylist(ctx, catalog)

	default:
		return pickSearchResult(ctx, cfg, catalog)
	}
}

func pickPlaylist(ctx context.Context, catalog *spotify.Client) (spotify.Source, error) {
	playlists, err := catalog.UserPlaylists(ctx)
	if err != nil {
		return spotify.Source{}, err
	}
	if len(playlists) == 0 {
		return spotify.Source{}, fmt.Errorf("no playlists found")
	}

	for i, playlist := range playlists {
		fmt.Printf("%d: %s\n", i+1, playlist.Name)
	}
	index, err := promptIndex("Select playlist by ID: ", len(playlists))
	if err != nil {
		return spotify.Source{}, err
	}

	selected := playlists[index-1]
	color.Green(">>> Downloading playlist: %s >>>", selected.Name)
	return spotify.Source{PlaylistID: selected.ID}, nil
}

func pickSearchResult(ctx context.Context, cfg *config.Config, catalog *spotify.Client) (spotify.Source, error) {
	query, err := promptLine("Enter search: ")
	if err != nil {
		return spotify.Source{}, err
	}

	results, err := catalog.Search(ctx, query, cfg.Limit)
	if err != nil {
		return spotify.Source{}, err
	}

	total := len(results.Tracks) + len(results.Albums) + len(results.Playlists)
	if total == 0 {
		return spotify.Source{}, fmt.Errorf("no results for %q", query)
	}

	index := 0
	if len(results.Tracks) > 0 {
		color.Magenta("Tracks")
		for _, track := range results.Tracks {
			index++
			fmt.Printf("%d, %s | %s\n", index, track.Name, strings.Join(track.Artists, ","))
		}
		fmt.Println()
	}
	if len(results.Albums) > 0 {
		color.Magenta("Albums")
		for _, album := range results.Albums {
			index++
			fmt.Printf("%d, %s | %s\n", index, album.Name, album.ArtistName)
		}
		fmt.Println()
	}
	if len(results.Playlists) > 0 {
		color.Magenta("Playlists")
		for _, playlist := range results.Playlists {
			index++
			fmt.Printf("%d, %s | %s\n", index, playlist.Name, playlist.OwnerName)
		}
		fmt.Println()
	}

	choice, err := promptIndex("Select by ID: ", total)
	if err != nil {
		return spotify.Source{}, err
	}

	// Map the flat index back to its category. URI forms reuse the
	// resolver's normal URL path.
	switch {
	case choice <= len(results.Tracks):
		return spotify.Source{URL: "spotify:track:" + results.Tracks[choice-1].ID}, nil
	case choice <= len(results.Tracks)+len(results.Albums):
		album := results.Albums[choice-len(results.Tracks)-1]
		color.Green(">>> Downloading Album: %s >>>", album.Name)
		return spotify.Source{URL: "spotify:album:" + album.ID}, nil
	default:
		playlist := results.Playlists[choice-len(results.Tracks)-len(results.Albums)-1]
		color.Green(">>> Downloading Playlist: %s >>>", playlist.Name)
		return spotify.Source{PlaylistID: playlist.ID}, nil
	}
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptIndex(prompt string, max int) (int, error) {
	line, err := promptLine(prompt)
	if err != nil {
		return 0, err
	}
	index, err := strconv.Atoi(line)
	if err != nil || index < 1 || index > max {
		return 0, fmt.Errorf("invalid selection: %s", line)
	}
	return index, nil
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "DEBUG":
		zapLevel = zapcore.DebugLevel
	case "INFO":
		zapLevel = zapcore.InfoLevel
	case "WARN":
		zapLevel = zapcore.WarnLevel
	case "ERROR":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.OutputPaths = []string{"stderr"}
	return zapCfg.Build()
}

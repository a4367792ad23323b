package spotify

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ozora-ogino/spotify-dlx/downloader"
)

// Source describes one resolution request: a specific URL, the user's
// liked songs, or a playlist id.
type Source struct {
	URL        string
	Liked      bool
	PlaylistID string
}

// Resolver turns a Source into an ordered sequence of track descriptors.
// It owns the output path layout; nothing downstream recomputes paths.
type Resolver struct {
	catalog     *Client
	root        string
	rootPodcast string
	format      downloader.Format
	logger      *zap.Logger
}

// NewResolver creates a Resolver rooted at the configured directories.
func NewResolver(catalog *Client, root, rootPodcast string, format downloader.Format, logger *zap.Logger) *Resolver {
	return &Resolver{
		catalog:     catalog,
		root:        root,
		rootPodcast: rootPodcast,
		format:      format,
		logger:      logger,
	}
}

// Resolve produces the descriptor sequence for a source. Order is
// playlist/album order where one exists. Unplayable tracks are dropped
// with a log line.
func (r *Resolver) Resolve(ctx context.Context, source Source) ([]downloader.TrackDescriptor, error) {
	switch {
	case source.URL != "":
		return r.resolveURL(ctx, source.URL)
	case source.Liked:
		return r.resolveLiked(ctx)
	case source.PlaylistID != "":
		return r.resolvePlaylist(ctx, source.PlaylistID)
	default:
		return nil, NewResolutionError(ResolutionNotFound, "empty source")
	}
}

func (r *Resolver) resolveURL(ctx context.Context, rawURL string) ([]downloader.TrackDescriptor, error) {
	ref := ParseResourceURL(rawURL)
	if ref == nil {
		return nil, NewResolutionError(ResolutionNotFound, fmt.Sprintf("URL %q does not match any pattern", rawURL))
	}

	switch ref.Kind {
	case ResourceTrack:
		track, err := r.catalog.Track(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return r.trackDescriptors([]Track{*track}, ""), nil

	case ResourceAlbum:
		return r.resolveAlbum(ctx, ref.ID)

	case ResourcePlaylist:
		return r.resolvePlaylist(ctx, ref.ID)

	case ResourceEpisode:
		return r.resolveEpisode(ctx, ref.ID)

	default:
		return nil, NewResolutionError(ResolutionNotFound, "unsupported resource kind")
	}
}

func (r *Resolver) resolveAlbum(ctx context.Context, albumID string) ([]downloader.TrackDescriptor, error) {
	album, err := r.catalog.AlbumInfo(ctx, albumID)
	if err != nil {
		return nil, err
	}
	ids, err := r.catalog.AlbumTrackIDs(ctx, albumID)
	if err != nil {
		return nil, err
	}

	// The album tracks endpoint returns simplified objects; fetch each
	// track for the full metadata the path layout needs.
	tracks := make([]Track, 0, len(ids))
	for _, id := range ids {
		track, err := r.catalog.Track(ctx, id)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *track)
	}

	dir := fmt.Sprintf("%s - %s", SanitizeName(album.ArtistName), album.Name)
	return r.trackDescriptors(tracks, dir), nil
}

func (r *Resolver) resolvePlaylist(ctx context.Context, playlistID string) ([]downloader.TrackDescriptor, error) {
	playlist, err := r.catalog.PlaylistInfo(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	tracks, err := r.catalog.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return r.trackDescriptors(tracks, playlist.Name), nil
}

func (r *Resolver) resolveLiked(ctx context.Context) ([]downloader.TrackDescriptor, error) {
	tracks, err := r.catalog.LikedTracks(ctx)
	if err != nil {
		return nil, err
	}
	return r.trackDescriptors(tracks, "Liked Songs"), nil
}

// resolveEpisode maps a podcast episode under the podcast root. Episodes
// are always written as wav.
func (r *Resolver) resolveEpisode(ctx context.Context, episodeID string) ([]downloader.TrackDescriptor, error) {
	episode, err := r.catalog.Episode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s - %s", episode.ShowName, episode.Name)
	return []downloader.TrackDescriptor{{
		ID:              episode.ID,
		DisplayName:     name,
		DurationSeconds: episode.DurationMS / 1000,
		TargetPath:      filepath.Join(r.rootPodcast, name+".wav"),
		Format:          downloader.FormatWAV,
		Tags: downloader.TrackTags{
			Artist: episode.ShowName,
			Title:  episode.Name,
		},
	}}, nil
}

func (r *Resolver) trackDescriptors(tracks []Track, extraDir string) []downloader.TrackDescriptor {
	descriptors := make([]downloader.TrackDescriptor, 0, len(tracks))
	for _, track := range tracks {
		if !track.IsPlayable {
			r.logger.Info("skipping unavailable track", zap.String("name", track.DisplayName()))
			continue
		}
		name := SanitizeName(track.DisplayName())
		artist := ""
		if len(track.Artists) > 0 {
			artist = track.Artists[0]
		}
		descriptors = append(descriptors, downloader.TrackDescriptor{
			ID:              track.ID,
			DisplayName:     track.DisplayName(),
			DurationSeconds: track.DurationMS / 1000,
			TargetPath:      filepath.Join(r.root, extraDir, name+"."+r.format.String()),
			Format:          r.format,
			Tags: downloader.TrackTags{
				Artist:      artist,
				Title:       track.Name,
				Album:       track.AlbumName,
				Year:        track.ReleaseYear,
				DiscNumber:  track.DiscNumber,
				TrackNumber: track.TrackNumber,
				ArtworkURL:  track.ImageURL,
			},
		})
	}
	return descriptors
}

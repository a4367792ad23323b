package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is the catalog half of the session collaborator: it answers
// metadata questions over the public Web API. Audio bytes come from the
// StreamClient instead.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	logger     *zap.Logger
}

// NewClient creates a catalog client bound to a session.
func NewClient(session *Session, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    defaultAPIURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		session:    session,
		logger:     logger,
	}
}

// Track is the catalog metadata the resolver needs for one song.
type Track struct {
	ID          string
	Name        string
	Artists     []string
	AlbumName   string
	ReleaseYear string
	DiscNumber  int
	TrackNumber int
	DurationMS  int
	ImageURL    string
	IsPlayable  bool
}

// DisplayName renders the "Artist - Title" form used for filenames.
func (t Track) DisplayName() string {
	artist := ""
	if len(t.Artists) > 0 {
		artist = t.Artists[0]
	}
	return fmt.Sprintf("%s - %s", artist, t.Name)
}

// Episode is the catalog metadata for one podcast episode.
type Episode struct {
	ID         string
	Name       string
	ShowName   string
	DurationMS int
}

// Album identifies an album by its lead artist and title.
type Album struct {
	ID         string
	Name       string
	ArtistName string
}

// Playlist identifies a playlist and its owner.
type Playlist struct {
	ID        string
	Name      string
	OwnerName string
}

// SearchResults groups the three result categories of a catalog search.
type SearchResults struct {
	Tracks    []Track
	Albums    []Album
	Playlists []Playlist
}

// Wire types for the Web API payloads.

type artistObject struct {
	Name string `json:"name"`
}

type imageObject struct {
	URL string `json:"url"`
}

type albumObject struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []imageObject  `json:"images"`
	Artists     []artistObject `json:"artists"`
}

type trackObject struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	DurationMS  int            `json:"duration_ms"`
	DiscNumber  int            `json:"disc_number"`
	TrackNumber int            `json:"track_number"`
	IsPlayable  *bool          `json:"is_playable"`
	Artists     []artistObject `json:"artists"`
	Album       albumObject    `json:"album"`
}

func (t trackObject) toTrack() Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, SanitizeName(a.Name))
	}
	imageURL := ""
	if len(t.Album.Images) > 0 {
		imageURL = t.Album.Images[0].URL
	}
	playable := true
	if t.IsPlayable != nil {
		playable = *t.IsPlayable
	}
	return Track{
		ID:          t.ID,
		Name:        SanitizeName(t.Name),
		Artists:     artists,
		AlbumName:   SanitizeName(t.Album.Name),
		ReleaseYear: strings.SplitN(t.Album.ReleaseDate, "-", 2)[0],
		DiscNumber:  t.DiscNumber,
		TrackNumber: t.TrackNumber,
		DurationMS:  t.DurationMS,
		ImageURL:    imageURL,
		IsPlayable:  playable,
	}
}

// Track fetches full metadata for one track id.
func (c *Client) Track(ctx context.Context, id string) (*Track, error) {
	var payload struct {
		Tracks []trackObject `json:"tracks"`
	}
	query := url.Values{"ids": {id}, "market": {"from_token"}}
	if err := c.getJSON(ctx, "/v1/tracks", query, &payload); err != nil {
		return nil, err
	}
	if len(payload.Tracks) == 0 {
		return nil, NewResolutionError(ResolutionNotFound, "track not found: "+id)
	}
	track := payload.Tracks[0].toTrack()
	return &track, nil
}

// AlbumInfo fetches the artist and title of an album.
func (c *Client) AlbumInfo(ctx context.Context, id string) (*Album, error) {
	var payload albumObject
	if err := c.getJSON(ctx, "/v1/albums/"+id, nil, &payload); err != nil {
		return nil, err
	}
	artist := ""
	if len(payload.Artists) > 0 {
		artist = payload.Artists[0].Name
	}
	return &Album{ID: payload.ID, Name: SanitizeName(payload.Name), ArtistName: artist}, nil
}

// AlbumTrackIDs lists the track ids of an album in album order.
func (c *Client) AlbumTrackIDs(ctx context.Context, id string) ([]string, error) {
	var ids []string
	err := c.fetchItems(ctx, "/v1/albums/"+id+"/tracks", 50, func(raw json.RawMessage) error {
		var item trackObject
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		if item.ID != "" {
			ids = append(ids, item.ID)
		}
		return nil
	})
	return ids, err
}

// PlaylistInfo fetches the name and owner of a playlist.
func (c *Client) PlaylistInfo(ctx context.Context, id string) (*Playlist, error) {
	var payload struct {
		Name  string `json:"name"`
		Owner struct {
			DisplayName string `json:"display_name"`
		} `json:"owner"`
	}
	query := url.Values{"fields": {"name,owner(display_name)"}, "market": {"from_token"}}
	if err := c.getJSON(ctx, "/v1/playlists/"+id, query, &payload); err != nil {
		return nil, err
	}
	return &Playlist{
		ID:        id,
		Name:      SanitizeName(strings.TrimSpace(payload.Name)),
		OwnerName: payload.Owner.DisplayName,
	}, nil
}

// PlaylistTracks lists the tracks of a playlist in playlist order.
// Entries removed from the catalog come back with empty ids and are
// dropped here.
func (c *Client) PlaylistTracks(ctx context.Context, id string) ([]Track, error) {
	return c.fetchWrappedTracks(ctx, "/v1/playlists/"+id+"/tracks", 100)
}

// LikedTracks lists the user's saved tracks. Order is whatever the
// catalog returns; resume logic never depends on it.
func (c *Client) LikedTracks(ctx context.Context) ([]Track, error) {
	return c.fetchWrappedTracks(ctx, "/v1/me/tracks", 50)
}

// UserPlaylists lists the playlists of the authenticated user.
func (c *Client) UserPlaylists(ctx context.Context) ([]Playlist, error) {
	var playlists []Playlist
	err := c.fetchItems(ctx, "/v1/me/playlists", 50, func(raw json.RawMessage) error {
		var item struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Owner struct {
				DisplayName string `json:"display_name"`
			} `json:"owner"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		playlists = append(playlists, Playlist{
			ID:        item.ID,
			Name:      SanitizeName(strings.TrimSpace(item.Name)),
			OwnerName: item.Owner.DisplayName,
		})
		return nil
	})
	return playlists, err
}

// Episode fetches podcast episode metadata.
func (c *Client) Episode(ctx context.Context, id string) (*Episode, error) {
	var payload struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		DurationMS int    `json:"duration_ms"`
		Show       struct {
			Name string `json:"name"`
		} `json:"show"`
	}
	if err := c.getJSON(ctx, "/v1/episodes/"+id, nil, &payload); err != nil {
		return nil, err
	}
	return &Episode{
		ID:         payload.ID,
		Name:       SanitizeName(payload.Name),
		ShowName:   SanitizeName(payload.Show.Name),
		DurationMS: payload.DurationMS,
	}, nil
}

// Search queries the catalog for tracks, albums and playlists, capped at
// limit results per category.
func (c *Client) Search(ctx context.Context, searchQuery string, limit int) (*SearchResults, error) {
	if limit < 1 {
		limit = 10
	}
	var payload struct {
		Tracks struct {
			Items []trackObject `json:"items"`
		} `json:"tracks"`
		Albums struct {
			Items []albumObject `json:"items"`
		} `json:"albums"`
		Playlists struct {
			Items []struct {
				ID    string `json:"id"`
				Name  string `json:"name"`
				Owner struct {
					DisplayName string `json:"display_name"`
				} `json:"owner"`
			} `json:"items"`
		} `json:"playlists"`
	}
	query := url.Values{
		"q":      {searchQuery},
		"type":   {"track,album,playlist"},
		"limit":  {strconv.Itoa(limit)},
		"offset": {"0"},
	}
	if err := c.getJSON(ctx, "/v1/search", query, &payload); err != nil {
		return nil, err
	}

	results := &SearchResults{}
	for _, item := range payload.Tracks.Items {
		results.Tracks = append(results.Tracks, item.toTrack())
	}
	for _, item := range payload.Albums.Items {
		artist := ""
		if len(item.Artists) > 0 {
			artist = item.Artists[0].Name
		}
		results.Albums = append(results.Albums, Album{
			ID: item.ID, Name: SanitizeName(item.Name), ArtistName: artist,
		})
	}
	for _, item := range payload.Playlists.Items {
		results.Playlists = append(results.Playlists, Playlist{
			ID: item.ID, Name: SanitizeName(item.Name), OwnerName: item.Owner.DisplayName,
		})
	}
	return results, nil
}

// fetchWrappedTracks pages through endpoints whose items wrap a track
// object ({"track": {...}}).
func (c *Client) fetchWrappedTracks(ctx context.Context, path string, limit int) ([]Track, error) {
	var tracks []Track
	err := c.fetchItems(ctx, path, limit, func(raw json.RawMessage) error {
		var item struct {
			Track *trackObject `json:"track"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		if item.Track == nil || item.Track.ID == "" || item.Track.Name == "" {
			// The song no longer exists in the catalog.
			return nil
		}
		tracks = append(tracks, item.Track.toTrack())
		return nil
	})
	return tracks, err
}

// fetchItems walks a paginated collection with limit/offset until a short
// page signals the end.
func (c *Client) fetchItems(ctx context.Context, path string, limit int, visit func(json.RawMessage) error) error {
	offset := 0
	for {
		var page struct {
			Items []json.RawMessage `json:"items"`
		}
		query := url.Values{
			"limit":  {strconv.Itoa(limit)},
			"offset": {strconv.Itoa(offset)},
		}
		if err := c.getJSON(ctx, path, query, &page); err != nil {
			return err
		}
		for _, raw := range page.Items {
			if err := visit(raw); err != nil {
				return NewResolutionErrorWithCause(ResolutionTransient, "malformed catalog page", err)
			}
		}
		if len(page.Items) < limit {
			return nil
		}
		offset += limit
	}
}

// getJSON performs an authenticated GET and decodes the response body.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return NewResolutionErrorWithCause(ResolutionTransient, "failed to build catalog request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.session.AccessToken)
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewResolutionErrorWithCause(ResolutionTransient, "catalog request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("catalog request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return statusToResolutionError(resp.StatusCode, fmt.Sprintf("catalog returned %s for %s", resp.Status, path))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return NewResolutionErrorWithCause(ResolutionTransient, "malformed catalog response", err)
	}
	return nil
}

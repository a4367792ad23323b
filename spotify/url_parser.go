package spotify

import (
	"regexp"
)

// ResourceKind identifies what kind of catalog resource a URL points at.
type ResourceKind int

const (
	ResourceTrack ResourceKind = iota
	ResourceAlbum
	ResourcePlaylist
	ResourceEpisode
)

// String returns the string representation of the resource kind
func (k ResourceKind) String() string {
	switch k {
	case ResourceTrack:
		return "track"
	case ResourceAlbum:
		return "album"
	case ResourcePlaylist:
		return "playlist"
	case ResourceEpisode:
		return "episode"
	default:
		return "unknown"
	}
}

// ResourceRef is the parsed form of a Spotify URL or URI.
type ResourceRef struct {
	Kind ResourceKind
	ID   string
}

// Each resource accepts the spotify: URI form and the open.spotify.com
// URL form, with an optional ?si= share suffix. IDs are 22 base62 chars.
var urlPatterns = []struct {
	kind ResourceKind
	uri  *regexp.Regexp
	url  *regexp.Regexp
}{
	{
		kind: ResourceTrack,
		uri:  regexp.MustCompile(`^spotify:track:(?P<ID>[0-9a-zA-Z]{22})$`),
		url:  regexp.MustCompile(`^(https?://)?open\.spotify\.com/track/(?P<ID>[0-9a-zA-Z]{22})(\?si=.+?)?$`),
	},
	{
		kind: ResourceAlbum,
		uri:  regexp.MustCompile(`^spotify:album:(?P<ID>[0-9a-zA-Z]{22})$`),
		url:  regexp.MustCompile(`^(https?://)?open\.spotify\.com/album/(?P<ID>[0-9a-zA-Z]{22})(\?si=.+?)?$`),
	},
	{
		kind: ResourcePlaylist,
		uri:  regexp.MustCompile(`^spotify:playlist:(?P<ID>[0-9a-zA-Z]{22})$`),
		url:  regexp.MustCompile(`^(https?://)?open\.spotify\.com/playlist/(?P<ID>[0-9a-zA-Z]{22})(\?si=.+?)?$`),
	},
	{
		kind: ResourceEpisode,
		uri:  regexp.MustCompile(`^spotify:episode:(?P<ID>[0-9a-zA-Z]{22})$`),
		url:  regexp.MustCompile(`^(https?://)?open\.spotify\.com/episode/(?P<ID>[0-9a-zA-Z]{22})(\?si=.+?)?$`),
	},
}

// ParseResourceURL parses a Spotify URL or URI into a ResourceRef. It
// returns nil when the input matches no known pattern.
func ParseResourceURL(input string) *ResourceRef {
	for _, p := range urlPatterns {
		if id := matchID(p.uri, input); id != "" {
			return &ResourceRef{Kind: p.kind, ID: id}
		}
		if id := matchID(p.url, input); id != "" {
			return &ResourceRef{Kind: p.kind, ID: id}
		}
	}
	return nil
}

func matchID(re *regexp.Regexp, input string) string {
	matches := re.FindStringSubmatch(input)
	if matches == nil {
		return ""
	}
	for i, name := range re.SubexpNames() {
		if name == "ID" {
			return matches[i]
		}
	}
	return ""
}

var forbiddenNameChars = regexp.MustCompile(`[\\/:*?'<>"]`)

// SanitizeName strips filesystem-hostile characters from a display name
// before it becomes part of an output path.
func SanitizeName(name string) string {
	cleaned := forbiddenNameChars.ReplaceAllString(name, "")
	out := make([]rune, 0, len(cleaned))
	for _, r := range cleaned {
		if r == '|' {
			r = '-'
		}
		out = append(out, r)
	}
	return string(out)
}

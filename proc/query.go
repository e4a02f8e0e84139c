package proc

import (
	"fmt"
	"net/url"
	"strings"
)

// MediaQueryKind tags what a user-supplied query turned out to be.
type MediaQueryKind int

const (
	QuerySearch MediaQueryKind = iota
	QueryYouTubeVideo
	QueryYouTubePlaylist
	QuerySpotifyTrack
	QuerySpotifyPlaylist
	QuerySpotifyAlbum
)

func (k MediaQueryKind) String() string {
	switch k {
	case QuerySearch:
		return "search"
	case QueryYouTubeVideo:
		return "youtube_video"
	case QueryYouTubePlaylist:
		return "youtube_playlist"
	case QuerySpotifyTrack:
		return "spotify_track"
	case QuerySpotifyPlaylist:
		return "spotify_playlist"
	case QuerySpotifyAlbum:
		return "spotify_album"
	}
	return "unknown"
}

// MediaQuery is a classified user query: either free search text or a
// platform content id extracted from a link.
type MediaQuery struct {
	Kind MediaQueryKind
	ID   string
}

// ParseError reports which part of a link was missing or malformed.
type ParseError struct {
	Part string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse link: %s", e.Part)
}

// ErrUnsupportedContent covers link kinds that can never produce audio
// here (Spotify episodes and shows).
type UnsupportedContentError struct {
	Kind string
}

func (e *UnsupportedContentError) Error() string {
	return fmt.Sprintf("unsupported content kind: %s", e.Kind)
}

// ParseQuery classifies a raw user query. Anything that does not look like
// a link is treated as search text, never as a parse error.
func ParseQuery(q string) (MediaQuery, error) {
	q = strings.TrimSpace(q)
	if !strings.HasPrefix(q, "http://") && !strings.HasPrefix(q, "https://") {
		return MediaQuery{Kind: QuerySearch, ID: q}, nil
	}

	u, err := url.Parse(q)
	if err != nil {
		return MediaQuery{}, &ParseError{Part: "url"}
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		return parseYouTubeURL(u)
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		if id == "" {
			return MediaQuery{}, &ParseError{Part: "video id"}
		}
		return MediaQuery{Kind: QueryYouTubeVideo, ID: id}, nil
	case "open.spotify.com":
		return parseSpotifyURL(u)
	}

	return MediaQuery{}, &ParseError{Part: "domain"}
}

func parseYouTubeURL(u *url.URL) (MediaQuery, error) {
	switch {
	case u.Path == "/watch":
		id := u.Query().Get("v")
		if id == "" {
			return MediaQuery{}, &ParseError{Part: "v parameter"}
		}
		return MediaQuery{Kind: QueryYouTubeVideo, ID: id}, nil
	case u.Path == "/playlist":
		id := u.Query().Get("list")
		if id == "" {
			return MediaQuery{}, &ParseError{Part: "list parameter"}
		}
		return MediaQuery{Kind: QueryYouTubePlaylist, ID: id}, nil
	case strings.HasPrefix(u.Path, "/shorts/"):
		id := strings.TrimPrefix(u.Path, "/shorts/")
		if id == "" {
			return MediaQuery{}, &ParseError{Part: "video id"}
		}
		return MediaQuery{Kind: QueryYouTubeVideo, ID: id}, nil
	}
	return MediaQuery{}, &ParseError{Part: "path"}
}

func parseSpotifyURL(u *url.URL) (MediaQuery, error) {
	// Paths look like /track/ID, optionally with a locale prefix like
	// /intl-pl/track/ID.
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 || parts[1] == "" {
		return MediaQuery{}, &ParseError{Part: "content id"}
	}

	kind, id := parts[0], parts[1]
	switch kind {
	case "track":
		return MediaQuery{Kind: QuerySpotifyTrack, ID: id}, nil
	case "playlist":
		return MediaQuery{Kind: QuerySpotifyPlaylist, ID: id}, nil
	case "album":
		return MediaQuery{Kind: QuerySpotifyAlbum, ID: id}, nil
	case "episode", "show":
		return MediaQuery{}, &UnsupportedContentError{Kind: kind}
	}
	return MediaQuery{}, &ParseError{Part: "content kind"}
}

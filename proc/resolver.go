package proc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/ayameko/hibiki/sys"
)

const PlaylistFetchLimit = 100

var (
	ErrNoResults          = errors.New("no results")
	ErrSpotifyUnavailable = errors.New("spotify credentials not configured")
)

// SearchHit is one remote lookup result.
type SearchHit struct {
	VideoID   string
	Title     string
	Uploader  string
	Duration  time.Duration
	Thumbnail string
}

// SpotifyEntry is one track reference from a Spotify batch lookup. The
// referenced audio lives on a different platform, so entries only carry
// enough text to build a search query.
type SpotifyEntry struct {
	Title   string
	Artists []string
}

// SearchQuery renders the entry as deferred YouTube search text.
func (e SpotifyEntry) SearchQuery() string {
	if len(e.Artists) == 0 {
		return e.Title
	}
	return e.Title + " by " + strings.Join(e.Artists, ", ")
}

// SpotifyCatalog is the batch/detail surface of the Spotify Web API the
// resolver needs. Nil when no credentials are configured.
type SpotifyCatalog interface {
	Track(ctx context.Context, id string) (SpotifyEntry, error)
	PlaylistEntries(ctx context.Context, id string) ([]SpotifyEntry, error)
	AlbumEntries(ctx context.Context, id string) ([]SpotifyEntry, error)
}

// ResolvedTrack is one entry of a converted query: either live metadata
// or a deferred search query placeholder.
type ResolvedTrack struct {
	Meta  *TrackMetadata
	Query string
}

func (t ResolvedTrack) Pending() bool { return t.Meta == nil }

// ConvertedQuery is the resolver output for a single user command.
type ConvertedQuery struct {
	Tracks []ResolvedTrack
}

// Resolver turns classified queries into playable track lists. The remote
// collaborators are plain functions so tests can swap them out.
type Resolver struct {
	SearchFirst   func(ctx context.Context, text string) (*SearchHit, error)
	Details       func(ctx context.Context, videoID string) (*SearchHit, error)
	PlaylistItems func(ctx context.Context, playlistID string) ([]SearchHit, error)
	Spotify       SpotifyCatalog
}

// NewResolver wires the production collaborators. spotify may be nil.
func NewResolver(spotify SpotifyCatalog) *Resolver {
	return &Resolver{
		SearchFirst:   ytdlpSearchFirst,
		Details:       ytdlpDetails,
		PlaylistItems: ytdlpPlaylistItems,
		Spotify:       spotify,
	}
}

// ResolveText is the ResolveFunc bound to pending metadata slots: one
// search, first hit wins.
func (r *Resolver) ResolveText(ctx context.Context, text string) (TrackMetadata, error) {
	hit, err := r.SearchFirst(ctx, text)
	if err != nil {
		return TrackMetadata{}, err
	}
	if hit == nil {
		return TrackMetadata{}, ErrNoResults
	}
	return hit.Metadata(), nil
}

// Resolve converts a classified query into tracks. Spotify playlists and
// albums cost one batch call and come back as deferred placeholders; all
// other kinds resolve eagerly. Transport errors propagate unretried.
func (r *Resolver) Resolve(ctx context.Context, q MediaQuery) (*ConvertedQuery, error) {
	sys.LogResolver(sys.MsgResolverResolving, q.Kind.String()+" "+q.ID)

	switch q.Kind {
	case QuerySearch:
		meta, err := r.ResolveText(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		sys.LogResolver(sys.MsgResolverResolved, q.ID, meta.Source.String())
		return &ConvertedQuery{Tracks: []ResolvedTrack{{Meta: &meta}}}, nil

	case QueryYouTubeVideo:
		hit, err := r.Details(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		if hit == nil {
			return nil, ErrNoResults
		}
		meta := hit.Metadata()
		return &ConvertedQuery{Tracks: []ResolvedTrack{{Meta: &meta}}}, nil

	case QueryYouTubePlaylist:
		hits, err := r.PlaylistItems(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			return nil, ErrNoResults
		}
		out := &ConvertedQuery{}
		for _, hit := range hits {
			meta := hit.Metadata()
			out.Tracks = append(out.Tracks, ResolvedTrack{Meta: &meta})
		}
		sys.LogResolver(sys.MsgResolverPlaylistBatch, len(out.Tracks), q.ID)
		return out, nil

	case QuerySpotifyTrack:
		if r.Spotify == nil {
			return nil, ErrSpotifyUnavailable
		}
		entry, err := r.Spotify.Track(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		meta, err := r.ResolveText(ctx, entry.SearchQuery())
		if err != nil {
			return nil, err
		}
		return &ConvertedQuery{Tracks: []ResolvedTrack{{Meta: &meta}}}, nil

	case QuerySpotifyPlaylist, QuerySpotifyAlbum:
		if r.Spotify == nil {
			return nil, ErrSpotifyUnavailable
		}
		var entries []SpotifyEntry
		var err error
		if q.Kind == QuerySpotifyPlaylist {
			entries, err = r.Spotify.PlaylistEntries(ctx, q.ID)
		} else {
			entries, err = r.Spotify.AlbumEntries(ctx, q.ID)
		}
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, ErrNoResults
		}
		out := &ConvertedQuery{}
		for _, entry := range entries {
			out.Tracks = append(out.Tracks, ResolvedTrack{Query: entry.SearchQuery()})
		}
		sys.LogResolver(sys.MsgResolverPlaylistBatch, len(out.Tracks), q.ID)
		return out, nil
	}

	return nil, fmt.Errorf("unhandled query kind: %s", q.Kind)
}

// Metadata converts a lookup hit into resolved track metadata.
func (h SearchHit) Metadata() TrackMetadata {
	return TrackMetadata{
		Title:     h.Title,
		Duration:  h.Duration,
		Source:    RemoteVideo(h.VideoID),
		Thumbnail: h.Thumbnail,
	}
}

// --- yt-dlp backed collaborators ---

func ytdlpSearchFirst(ctx context.Context, text string) (*SearchHit, error) {
	hits, err := ytdlpFlatQuery(ctx, "ytsearch1:"+text, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	return &hits[0], nil
}

func ytdlpDetails(ctx context.Context, videoID string) (*SearchHit, error) {
	hits, err := ytdlpFlatQuery(ctx, "https://www.youtube.com/watch?v="+videoID, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	return &hits[0], nil
}

func ytdlpPlaylistItems(ctx context.Context, playlistID string) ([]SearchHit, error) {
	return ytdlpFlatQuery(ctx, "https://www.youtube.com/playlist?list="+playlistID, PlaylistFetchLimit)
}

func ytdlpFlatQuery(ctx context.Context, target string, max int) ([]SearchHit, error) {
	res, err := ytdlp.New().
		FlatPlaylist().
		Print("%(id)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(thumbnail)s").
		PlaylistItems(fmt.Sprintf("1-%d", max)).
		NoWarnings().
		IgnoreConfig().
		Run(ctx, target)
	if err != nil {
		return nil, err
	}

	ls := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	hits := make([]SearchHit, 0, len(ls))
	for _, l := range ls {
		ps := strings.Split(l, "\t")
		if len(ps) < 4 {
			continue
		}
		d, _ := time.ParseDuration(ps[3] + "s")
		hit := SearchHit{VideoID: ps[0], Title: ps[1], Uploader: ps[2], Duration: d}
		if len(ps) > 4 {
			hit.Thumbnail = ps[4]
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

package proc

import (
	"context"

	spotify "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// SpotifyClient backs SpotifyCatalog with the Spotify Web API using the
// client-credentials flow. Only catalog reads, no user scope.
type SpotifyClient struct {
	api *spotify.Client
}

func NewSpotifyClient(ctx context.Context, clientID, clientSecret string) (*SpotifyClient, error) {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := config.Token(ctx)
	if err != nil {
		return nil, err
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	return &SpotifyClient{api: spotify.New(httpClient)}, nil
}

func (c *SpotifyClient) Track(ctx context.Context, id string) (SpotifyEntry, error) {
	track, err := c.api.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return SpotifyEntry{}, err
	}
	return SpotifyEntry{Title: track.Name, Artists: artistNames(track.Artists)}, nil
}

func (c *SpotifyClient) PlaylistEntries(ctx context.Context, id string) ([]SpotifyEntry, error) {
	page, err := c.api.GetPlaylistItems(ctx, spotify.ID(id))
	if err != nil {
		return nil, err
	}

	var entries []SpotifyEntry
	for _, item := range page.Items {
		// Episode entries carry no track reference and are skipped.
		if item.Track.Track == nil {
			continue
		}
		entries = append(entries, SpotifyEntry{
			Title:   item.Track.Track.Name,
			Artists: artistNames(item.Track.Track.Artists),
		})
	}
	return entries, nil
}

func (c *SpotifyClient) AlbumEntries(ctx context.Context, id string) ([]SpotifyEntry, error) {
	album, err := c.api.GetAlbum(ctx, spotify.ID(id))
	if err != nil {
		return nil, err
	}

	var entries []SpotifyEntry
	for _, track := range album.Tracks.Tracks {
		entries = append(entries, SpotifyEntry{
			Title:   track.Name,
			Artists: artistNames(track.Artists),
		})
	}
	return entries, nil
}

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return names
}

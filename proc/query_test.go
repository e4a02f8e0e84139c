package proc

import (
	"errors"
	"testing"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  MediaQuery
	}{
		{"plain text", "never gonna give you up", MediaQuery{QuerySearch, "never gonna give you up"}},
		{"text with spaces trimmed", "  lofi beats  ", MediaQuery{QuerySearch, "lofi beats"}},
		{"watch link", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", MediaQuery{QueryYouTubeVideo, "dQw4w9WgXcQ"}},
		{"watch link no www", "https://youtube.com/watch?v=dQw4w9WgXcQ", MediaQuery{QueryYouTubeVideo, "dQw4w9WgXcQ"}},
		{"mobile link", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", MediaQuery{QueryYouTubeVideo, "dQw4w9WgXcQ"}},
		{"music link", "https://music.youtube.com/watch?v=dQw4w9WgXcQ", MediaQuery{QueryYouTubeVideo, "dQw4w9WgXcQ"}},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", MediaQuery{QueryYouTubeVideo, "dQw4w9WgXcQ"}},
		{"shorts link", "https://www.youtube.com/shorts/abc123def45", MediaQuery{QueryYouTubeVideo, "abc123def45"}},
		{"playlist link", "https://www.youtube.com/playlist?list=PLxyz", MediaQuery{QueryYouTubePlaylist, "PLxyz"}},
		{"spotify track", "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT", MediaQuery{QuerySpotifyTrack, "4cOdK2wGLETKBW3PvgPWqT"}},
		{"spotify track with locale", "https://open.spotify.com/intl-pl/track/4cOdK2wGLETKBW3PvgPWqT", MediaQuery{QuerySpotifyTrack, "4cOdK2wGLETKBW3PvgPWqT"}},
		{"spotify playlist", "https://open.spotify.com/playlist/37i9dQZF1DX4sWSpwq3LiO", MediaQuery{QuerySpotifyPlaylist, "37i9dQZF1DX4sWSpwq3LiO"}},
		{"spotify album", "https://open.spotify.com/album/2noRn2Aes5aoNVsU6iWThc", MediaQuery{QuerySpotifyAlbum, "2noRn2Aes5aoNVsU6iWThc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuery(tt.input)
			if err != nil {
				t.Fatalf("ParseQuery(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseQuery(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseQueryErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown domain", "https://example.com/watch?v=abc"},
		{"watch without id", "https://www.youtube.com/watch"},
		{"playlist without id", "https://www.youtube.com/playlist"},
		{"empty short link", "https://youtu.be/"},
		{"spotify missing id", "https://open.spotify.com/track"},
		{"youtube channel path", "https://www.youtube.com/@somechannel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuery(tt.input)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("ParseQuery(%q) error = %v, want *ParseError", tt.input, err)
			}
		})
	}
}

func TestParseQueryUnsupportedContent(t *testing.T) {
	for _, kind := range []string{"episode", "show"} {
		t.Run(kind, func(t *testing.T) {
			_, err := ParseQuery("https://open.spotify.com/" + kind + "/abc123")
			var unsupported *UnsupportedContentError
			if !errors.As(err, &unsupported) {
				t.Fatalf("error = %v, want *UnsupportedContentError", err)
			}
			if unsupported.Kind != kind {
				t.Errorf("Kind = %q, want %q", unsupported.Kind, kind)
			}
		})
	}
}

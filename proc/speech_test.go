package proc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
)

type fakeTTSTransport struct {
	body []byte
}

func (t *fakeTTSTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(t.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func TestGenerateClipWritesFile(t *testing.T) {
	g := NewSpeechGenerator(t.TempDir(), 3, 100)
	g.HTTPClient = &http.Client{Transport: &fakeTTSTransport{body: []byte("mp3-bytes")}}
	g.FetchText = func(ctx context.Context) (string, error) {
		return "A short joke.", nil
	}

	path, err := g.GenerateClip(context.Background(), "guild1")
	if err != nil {
		t.Fatalf("GenerateClip: %v", err)
	}
	if !strings.HasSuffix(path, "guild1.mp3") {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("clip file: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Errorf("clip content = %q", data)
	}
}

func TestGenerateClipRejectsLongText(t *testing.T) {
	g := NewSpeechGenerator(t.TempDir(), 3, 10)
	g.HTTPClient = &http.Client{Transport: &fakeTTSTransport{body: []byte("x")}}

	var calls int
	g.FetchText = func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			// Too long; must be rejected whole, never truncated
			return strings.Repeat("a", 50), nil
		}
		return "short", nil
	}

	if _, err := g.GenerateClip(context.Background(), "k"); err != nil {
		t.Fatalf("GenerateClip: %v", err)
	}
	if calls != 3 {
		t.Errorf("fetch called %d times, want 3", calls)
	}
}

func TestGenerateClipExhaustsRetries(t *testing.T) {
	g := NewSpeechGenerator(t.TempDir(), 2, 10)
	g.FetchText = func(ctx context.Context) (string, error) {
		return "", errors.New("site down")
	}

	if _, err := g.GenerateClip(context.Background(), "k"); !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("err = %v, want ErrRetriesExhausted", err)
	}
}

func TestGenerateClipHonorsCancel(t *testing.T) {
	g := NewSpeechGenerator(t.TempDir(), 100, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.GenerateClip(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

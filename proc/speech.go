package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/ayameko/hibiki/sys"
)

const (
	jokeSourceURL = "https://dowcipy.jeja.pl/losowe"
	ttsEndpoint   = "https://translate.google.com/translate_tts"
	ttsLanguage   = "pl"
)

// ErrRetriesExhausted means no acceptable clip could be produced within
// the configured attempt budget.
var ErrRetriesExhausted = errors.New("speech generation retries exhausted")

// SpeechGenerator materializes short spoken clips from scraped joke text.
// The joke site is flaky and frequently serves texts too long to speak,
// so attempts are bounded and rate paced.
type SpeechGenerator struct {
	HTTPClient  *http.Client
	Dir         string
	MaxAttempts int
	MaxChars    int

	// FetchText is swappable for tests; defaults to the joke scraper.
	FetchText func(ctx context.Context) (string, error)

	limiter *rate.Limiter
}

func NewSpeechGenerator(dir string, maxAttempts, maxChars int) *SpeechGenerator {
	g := &SpeechGenerator{
		HTTPClient:  &http.Client{Timeout: 15 * time.Second},
		Dir:         dir,
		MaxAttempts: maxAttempts,
		MaxChars:    maxChars,
		limiter:     rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
	g.FetchText = g.scrapeJoke
	return g
}

// GenerateClip produces a spoken mp3 for the given clip key and returns
// its path. Candidates longer than MaxChars are rejected outright rather
// than truncated; the next attempt fetches a fresh one.
func (g *SpeechGenerator) GenerateClip(ctx context.Context, key string) (string, error) {
	for attempt := 1; attempt <= g.MaxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}

		sys.LogSpeech(sys.MsgSpeechScraping, attempt, g.MaxAttempts)
		text, err := g.FetchText(ctx)
		if err != nil {
			sys.LogSpeech(sys.MsgSpeechGenerateError, err)
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" || len([]rune(text)) > g.MaxChars {
			sys.LogSpeech(sys.MsgSpeechRejected, len([]rune(text)))
			continue
		}

		path, err := g.synthesize(ctx, key, text)
		if err != nil {
			sys.LogSpeech(sys.MsgSpeechGenerateError, err)
			continue
		}

		sys.LogSpeech(sys.MsgSpeechGenerated, path)
		return path, nil
	}

	return "", ErrRetriesExhausted
}

// scrapeJoke pulls one random joke text from the joke site.
func (g *SpeechGenerator) scrapeJoke(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jokeSourceURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("joke source returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	text := doc.Find("div.dow-left-text").First().Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no joke text found on page")
	}
	return text, nil
}

// synthesize fetches the spoken mp3 for the text and writes it to the
// per-key clip file.
func (g *SpeechGenerator) synthesize(ctx context.Context, key, text string) (string, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("tl", ttsLanguage)
	q.Set("client", "tw-ob")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ttsEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tts returned status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(g.Dir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(g.Dir, key+".mp3")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	return path, f.Close()
}

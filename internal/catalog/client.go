package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/MimeLyc/livesub/internal/subtitle"
	"github.com/MimeLyc/livesub/pkg/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL = "https://video.svt.se"
	// SourceLanguage is the only subtitle language offered for translation.
	SourceLanguage = "sv"

	maxBodyBytes = 16 << 20
)

var videoIDPattern = regexp.MustCompile(`/video/([^/?]+)`)

// ErrStatus is wrapped by errors for non-2xx responses.
var ErrStatus = errors.New("unexpected response status")

type SubtitleOption struct {
	URL      string `json:"url"`
	Label    string `json:"label"`
	Language string `json:"language"`
	Format   string `json:"format"`
}

type videoResponse struct {
	SubtitleReferences []SubtitleOption `json:"subtitleReferences"`
}

// Client looks up subtitle tracks for videos and downloads them.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	lookups    singleflight.Group
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// VideoIDFromURL extracts the id segment following "/video/" in a page URL.
// It returns "" when the URL carries none.
func VideoIDFromURL(pageURL string) string {
	match := videoIDPattern.FindStringSubmatch(pageURL)
	if match == nil {
		return ""
	}
	return match[1]
}

// FetchSubtitleOptions returns the Swedish subtitle tracks for videoID.
// Concurrent lookups for the same video share one request, which is bounded
// by the client timeout rather than by any single caller's context.
func (c *Client) FetchSubtitleOptions(ctx context.Context, videoID string) ([]SubtitleOption, error) {
	if videoID == "" {
		return nil, fmt.Errorf("video id is required")
	}

	ch := c.lookups.DoChan(videoID, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetchOptions(lookupCtx, videoID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debug("Shared subtitle lookup for video %s", videoID)
		}
		options := res.Val.([]SubtitleOption)
		return append([]SubtitleOption(nil), options...), nil
	}
}

func (c *Client) fetchOptions(ctx context.Context, videoID string) ([]SubtitleOption, error) {
	body, err := c.get(ctx, c.baseURL+"/video/"+videoID)
	if err != nil {
		return nil, fmt.Errorf("fetch video %s: %w", videoID, err)
	}

	var resp videoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode video %s: %w", videoID, err)
	}

	options := make([]SubtitleOption, 0, len(resp.SubtitleReferences))
	for _, ref := range resp.SubtitleReferences {
		if ref.Language == SourceLanguage {
			options = append(options, ref)
		}
	}
	log.Debug("Video %s has %d of %d subtitle tracks in %s",
		videoID, len(options), len(resp.SubtitleReferences), SourceLanguage)
	return options, nil
}

// FetchSubtitle downloads a WebVTT resource and returns its text.
func (c *Client) FetchSubtitle(ctx context.Context, subtitleURL string) (string, error) {
	body, err := c.get(ctx, subtitleURL)
	if err != nil {
		return "", fmt.Errorf("fetch subtitle %s: %w", subtitleURL, err)
	}
	return string(body), nil
}

// FetchTrack downloads and parses a WebVTT resource.
func (c *Client) FetchTrack(ctx context.Context, subtitleURL string) (subtitle.Track, error) {
	content, err := c.FetchSubtitle(ctx, subtitleURL)
	if err != nil {
		return subtitle.Track{}, err
	}
	return subtitle.ParseTrack(subtitleURL, content), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return body, nil
}

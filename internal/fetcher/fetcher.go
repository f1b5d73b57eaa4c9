package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

const _maxImageSize = 10 * 1024 * 1024 // 10 MB

// ErrTooLarge is returned for artwork above the size limit
var ErrTooLarge = errors.New("artwork too large")

// ArtFetcher retrieves cover art referenced by mpris:artUrl. Players use
// http(s) URLs for streamed media and file:// URLs for local caches.
type ArtFetcher struct {
	logger *zap.Logger
	client *http.Client
}

// NewArtFetcher creates a new cover art fetcher
func NewArtFetcher(logger *zap.Logger) *ArtFetcher {
	return &ArtFetcher{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Fetch returns the raw image bytes behind rawURL
func (f *ArtFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("empty artwork url")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid artwork url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchRemote(ctx, u)
	case "file", "":
		// file://localhost/path is the long form of file:///path
		if u.Host != "" && u.Host != "localhost" {
			return nil, fmt.Errorf("artwork file on remote host %s", u.Host)
		}
		return f.fetchFile(u.Path)
	default:
		return nil, fmt.Errorf("unsupported artwork url scheme: %s", u.Scheme)
	}
}

func (f *ArtFetcher) fetchRemote(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "mediaplayer/1.0")
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	// Image CDNs often answer with a generic type, so the bytes decide
	if contentType := sniffType(resp.Header.Get("Content-Type"), data); !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("artwork is not an image: %s", contentType)
	}

	f.logger.Debug("Artwork downloaded",
		zap.String("host", u.Host),
		zap.Int("bytes", len(data)))
	return data, nil
}

func (f *ArtFetcher) fetchFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artwork file: %w", err)
	}
	defer file.Close()

	data, err := readLimited(file)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Artwork read", zap.String("path", path), zap.Int("bytes", len(data)))
	return data, nil
}

// readLimited reads r fully and fails once it passes the size limit
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, _maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read artwork: %w", err)
	}
	if len(data) > _maxImageSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, _maxImageSize)
	}
	return data, nil
}

// sniffType trusts an image/* header and otherwise detects the type from data
func sniffType(header string, data []byte) string {
	if strings.HasPrefix(header, "image/") {
		return header
	}
	return http.DetectContentType(data)
}

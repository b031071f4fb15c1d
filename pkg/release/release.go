// Package release fetches the desktop app's update manifest from its GitHub
// release. Version information is not critical, so every failure degrades to
// an empty JSON object instead of an error.
package release

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// EmptyManifest is returned whenever the manifest cannot be fetched.
const EmptyManifest = "{}"

// Release is the subset of the GitHub "latest release" response the fetcher uses.
type Release struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// Asset is a file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Fetcher resolves the latest release and downloads one of its assets.
type Fetcher struct {
	apiURL     string
	assetName  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewFetcher creates a Fetcher that reads the latest release from apiURL and
// returns the asset called assetName.
func NewFetcher(apiURL, assetName string, httpClient *http.Client, logger *zap.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{
		apiURL:     apiURL,
		assetName:  assetName,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Latest returns the manifest JSON indented with four spaces, or EmptyManifest
// when any step fails.
func (f *Fetcher) Latest(ctx context.Context) string {
	manifest, err := f.fetchManifest(ctx)
	if err != nil {
		f.logger.Error("failed to fetch release manifest", zap.Error(err))
		return EmptyManifest
	}
	return manifest
}

func (f *Fetcher) fetchManifest(ctx context.Context) (string, error) {
	body, err := f.get(ctx, f.apiURL)
	if err != nil {
		return "", fmt.Errorf("latest release: %w", err)
	}

	var rel Release
	if err := json.Unmarshal(body, &rel); err != nil {
		return "", fmt.Errorf("decode latest release: %w", err)
	}

	downloadURL := rel.assetURL(f.assetName)
	if downloadURL == "" {
		return "", fmt.Errorf("release %s has no asset named %s", rel.TagName, f.assetName)
	}

	f.logger.Debug("downloading release manifest",
		zap.String("tag", rel.TagName),
		zap.String("url", downloadURL),
	)

	body, err = f.get(ctx, downloadURL)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", f.assetName, err)
	}

	// json.Indent keeps the manifest's key order, unlike a decode/encode round trip.
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(body), "", "    "); err != nil {
		return "", fmt.Errorf("invalid manifest json: %w", err)
	}

	return out.String(), nil
}

// assetURL returns the download URL of the last asset named name, matching
// how the manifest has always been resolved when names repeat.
func (r *Release) assetURL(name string) string {
	url := ""
	for _, a := range r.Assets {
		if a.Name == name {
			url = a.BrowserDownloadURL
		}
	}
	return url
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Error("release endpoint returned error",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	return body, nil
}

// StatusError reports a non-2xx response from a release endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

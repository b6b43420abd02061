package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"aura-farm-transformer/internal/styles"
)

// FetchError records one result image that could not be retrieved.
// Packaging continues without it.
type FetchError struct {
	Index  int
	URL    string
	Status int
	Err    error
}

func (e FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch image %d: %v", e.Index+1, e.Err)
	}
	return fmt.Sprintf("fetch image %d: status %d", e.Index+1, e.Status)
}

type Options struct {
	HTTPClient  *http.Client
	Logger      *slog.Logger
	Concurrency int
}

// Packager fetches transformed-image URLs and bundles them into a zip.
type Packager struct {
	httpClient  *http.Client
	logger      *slog.Logger
	concurrency int
}

func New(opts Options) *Packager {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 4
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Packager{
		httpClient:  httpClient,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Package fetches every URL and writes the successful ones into a single
// zip, one entry per image. Entries keep the 1-based index of their
// position in the requested sequence even when earlier fetches failed,
// so entry names stay traceable to the original result list. Zero
// successes still yield a valid empty archive.
func (p *Packager) Package(ctx context.Context, urls []string, style styles.Style) ([]byte, []FetchError, error) {
	images := make([][]byte, len(urls))
	failures := make([]FetchError, 0)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.concurrency)

	results := make([]*FetchError, len(urls))
	for i, url := range urls {
		i := i
		url := url
		eg.Go(func() error {
			data, ferr := p.fetch(egCtx, i, url)
			if ferr != nil {
				results[i] = ferr
				return nil
			}
			images[i] = data
			return nil
		})
	}
	// Workers only report per-item failures, so Wait can only fail on
	// context cancellation via egCtx. That never happens here; errors
	// stay per item.
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	for _, ferr := range results {
		if ferr != nil {
			p.logger.Warn("image fetch failed", "index", ferr.Index, "status", ferr.Status, "err", ferr.Err)
			failures = append(failures, *ferr)
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, data := range images {
		if data == nil {
			continue
		}
		entry, err := zw.Create(EntryName(style, i))
		if err != nil {
			zw.Close()
			return nil, failures, fmt.Errorf("create zip entry: %w", err)
		}
		if _, err := entry.Write(data); err != nil {
			zw.Close()
			return nil, failures, fmt.Errorf("write zip entry: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, failures, fmt.Errorf("finalize zip: %w", err)
	}

	return buf.Bytes(), failures, nil
}

func (p *Packager) fetch(ctx context.Context, index int, url string) ([]byte, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Index: index, URL: url, Err: err}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Index: index, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Index: index, URL: url, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Index: index, URL: url, Err: err}
	}
	return data, nil
}

// EntryName names one archive entry by the image's original 1-based
// index in the requested sequence.
func EntryName(style styles.Style, index int) string {
	return fmt.Sprintf("%s_transform_%d.png", style.Key(), index+1)
}

// Filename is the download name offered to the user.
func Filename(style styles.Style) string {
	return fmt.Sprintf("aura_farm_%s_transformations.zip", style.Key())
}

package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/agnosto/board-collector/config"
	"github.com/agnosto/board-collector/headers"
	"github.com/agnosto/board-collector/logger"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

// Downloader streams attachments from the media host into a local directory.
type Downloader struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	headers      *headers.BoardHeaders
	dir          string
	showProgress bool
}

// NewDownloader shares limiter with the API client so that media and
// listing requests draw from one budget.
func NewDownloader(cfg *config.Config, limiter *rate.Limiter) *Downloader {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(cfg.Board.RequestsPerSecond), cfg.Board.Burst)
	}
	return &Downloader{
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout()},
		limiter:      limiter,
		headers:      headers.NewBoardHeaders(cfg),
		dir:          cfg.ImageDir(),
		showProgress: cfg.Options.ShowProgress,
	}
}

// Download saves url as dir/fileName and returns the written path. A
// partially written file is removed on failure.
func (d *Downloader) Download(ctx context.Context, url, fileName string) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", &DownloadError{URL: url, Err: fmt.Errorf("rate limiter wait error: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	d.headers.AddHeadersToRequest(req)
	req.Header.Set("Accept", "image/*")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(d.dir, os.ModePerm); err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}

	filePath := filepath.Join(d.dir, filepath.Base(fileName))
	out, err := os.Create(filePath)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}

	var w io.Writer = out
	if d.showProgress {
		bar := progressbar.NewOptions64(
			resp.ContentLength,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetDescription(fmt.Sprintf("[green]Downloading[reset] %s", fileName)),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(15*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		w = io.MultiWriter(out, bar)
	}

	n, err := io.Copy(w, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(filePath)
		return "", &DownloadError{URL: url, Err: err}
	}

	logger.Logger.Printf("[INFO] Downloaded %s (%s)", fileName, humanize.Bytes(uint64(n)))
	return filePath, nil
}

// Package fetcher downloads report artifacts with exchange-appropriate
// request headers and writes them to disk only once the whole body has
// arrived.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/seenimoa/annualreport/internal/config"
	"github.com/seenimoa/annualreport/pkg/models"
)

// GenericReferer is sent when the exchange hint has no known domain.
const GenericReferer = "https://www.google.com/"

// referers maps each exchange to its own site root.
var referers = map[models.Exchange]string{
	models.BSE: "https://www.bseindia.com/",
	models.NSE: "https://www.nseindia.com/",
}

// RefererFor returns the Referer header for an exchange hint.
func RefererFor(ex models.Exchange) string {
	if r, ok := referers[ex]; ok {
		return r
	}
	return GenericReferer
}

// ErrNotPDF is returned when PDF verification is on and the payload does
// not start with the %PDF magic.
var ErrNotPDF = errors.New("downloaded content is not a PDF")

// StatusError wraps a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.URL)
}

// Result is the outcome of one fetch: the byte count written, or the error.
type Result struct {
	Path string
	Size int64
	Err  error
}

// OK reports whether the file was written.
func (r Result) OK() bool { return r.Err == nil }

// Options configures a Fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	VerifyPDF bool
	Client    *http.Client // optional; a client with Timeout is built if nil
	Logger    *zap.Logger
}

// OptionsFromConfig maps the download and browser sections onto Options.
func OptionsFromConfig(cfg *config.Config, logger *zap.Logger) Options {
	return Options{
		Timeout:   cfg.Download.Timeout,
		UserAgent: cfg.Browser.UserAgent,
		VerifyPDF: cfg.Download.VerifyPDF,
		Logger:    logger,
	}
}

// Fetcher downloads artifacts. It is safe for concurrent use and keeps no
// state between calls.
type Fetcher struct {
	client    *http.Client
	userAgent string
	verifyPDF bool
	log       *zap.Logger
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:    client,
		userAgent: ua,
		verifyPDF: opts.VerifyPDF,
		log:       logger.Named("fetcher"),
	}
}

// Fetch downloads url and writes it to destPath, replacing any existing file.
// It never panics and never leaves a partial file at destPath: the body is
// buffered fully, written to a temp file beside destPath and renamed into
// place.
func (f *Fetcher) Fetch(ctx context.Context, url string, ex models.Exchange, destPath string) (res Result) {
	res.Path = destPath
	defer func() {
		if r := recover(); r != nil {
			res = Result{Path: destPath, Err: fmt.Errorf("fetch panicked: %v", r)}
		}
	}()

	body, err := f.get(ctx, url, ex)
	if err != nil {
		f.log.Warn("download failed", zap.String("url", url), zap.String("exchange", ex.String()), zap.Error(err))
		return Result{Path: destPath, Err: err}
	}

	if f.verifyPDF && !bytes.HasPrefix(body, []byte("%PDF")) {
		return Result{Path: destPath, Err: fmt.Errorf("%w (%d bytes)", ErrNotPDF, len(body))}
	}

	if err := writeAtomic(destPath, body); err != nil {
		return Result{Path: destPath, Err: err}
	}

	f.log.Debug("download complete", zap.String("url", url), zap.String("path", destPath), zap.Int("bytes", len(body)))
	return Result{Path: destPath, Size: int64(len(body))}
}

// get performs the GET with browser-like headers and returns the full body.
func (f *Fetcher) get(ctx context.Context, url string, ex models.Exchange) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Referer", RefererFor(ex))
	req.Header.Set("Accept", "application/pdf,application/octet-stream,*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck // drain body
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}
	return body, nil
}

// writeAtomic replaces path with data via a temp file in path's directory,
// so readers never see a partial report.
func writeAtomic(path string, data []byte) error {
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}

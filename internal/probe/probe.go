// Package probe asks a remote server for the declared size of a file
// without downloading it. The result is advisory: verification downstream
// treats an unknown size as "cannot verify" rather than a failure.
package probe

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vfaronov/httpheader"

	"github.com/seriesdl/seriesdl/internal/utils"
)

// Result is the outcome of a size probe. SizeKnown is false when every
// probe mechanism failed; the caller must not treat that as fatal.
type Result struct {
	Size      int64
	SizeKnown bool
	Filename  string // Content-Disposition hint, may be empty
}

// Prober performs header-only size probes with a bounded retry budget.
// The primary mechanism is a HEAD request; when that yields nothing, a
// ranged GET for the first byte is tried before giving up.
type Prober struct {
	client    *http.Client
	attempts  int
	userAgent string
}

// New returns a prober with the given per-request timeout, per-mechanism
// attempt budget and client header.
func New(timeout time.Duration, attempts int, userAgent string) *Prober {
	if attempts < 1 {
		attempts = 1
	}
	return &Prober{
		client:    &http.Client{Timeout: timeout},
		attempts:  attempts,
		userAgent: userAgent,
	}
}

// ExpectedSize probes rawurl for its declared content length. Network
// failure never propagates as an error; it degrades to an unknown size.
func (p *Prober) ExpectedSize(ctx context.Context, rawurl string) Result {
	utils.Debug("probe: HEAD %s", rawurl)
	if res, ok := p.tryHead(ctx, rawurl); ok {
		utils.Debug("probe: size of %s is %d (HEAD)", rawurl, res.Size)
		return res
	}

	utils.Debug("probe: HEAD failed, falling back to ranged GET for %s", rawurl)
	if res, ok := p.tryRangedGet(ctx, rawurl); ok {
		utils.Debug("probe: size of %s is %d (ranged GET)", rawurl, res.Size)
		return res
	}

	utils.Debug("probe: no expected size obtainable for %s", rawurl)
	return Result{}
}

func (p *Prober) tryHead(ctx context.Context, rawurl string) (Result, bool) {
	for i := 0; i < p.attempts; i++ {
		if i > 0 {
			time.Sleep(1 * time.Second)
			utils.Debug("probe: retrying HEAD, attempt %d", i+1)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawurl, nil)
		if err != nil {
			utils.Debug("probe: failed to create HEAD request: %v", err)
			return Result{}, false // malformed URL, retrying won't help
		}
		req.Header.Set("User-Agent", p.userAgent)

		resp, err := p.client.Do(req)
		if err != nil {
			utils.Debug("probe: HEAD attempt %d failed: %v", i+1, err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			utils.Debug("probe: HEAD status %d", resp.StatusCode)
			continue
		}
		if resp.ContentLength < 0 {
			utils.Debug("probe: HEAD carried no Content-Length")
			continue
		}

		return Result{
			Size:      resp.ContentLength,
			SizeKnown: true,
			Filename:  dispositionFilename(resp.Header),
		}, true
	}
	return Result{}, false
}

// tryRangedGet requests the first byte and reads the total from the
// Content-Range header, the same trick servers that reject HEAD usually
// still honor.
func (p *Prober) tryRangedGet(ctx context.Context, rawurl string) (Result, bool) {
	for i := 0; i < p.attempts; i++ {
		if i > 0 {
			time.Sleep(1 * time.Second)
			utils.Debug("probe: retrying ranged GET, attempt %d", i+1)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
		if err != nil {
			return Result{}, false
		}
		req.Header.Set("User-Agent", p.userAgent)
		req.Header.Set("Range", "bytes=0-0")

		resp, err := p.client.Do(req)
		if err != nil {
			utils.Debug("probe: ranged GET attempt %d failed: %v", i+1, err)
			continue
		}

		size, ok := sizeFromResponse(resp)
		resp.Body.Close()
		if !ok {
			utils.Debug("probe: ranged GET status %d, no size", resp.StatusCode)
			continue
		}

		return Result{
			Size:      size,
			SizeKnown: true,
			Filename:  dispositionFilename(resp.Header),
		}, true
	}
	return Result{}, false
}

func sizeFromResponse(resp *http.Response) (int64, bool) {
	switch resp.StatusCode {
	case http.StatusPartialContent:
		// Content-Range: bytes 0-0/TOTAL
		contentRange := resp.Header.Get("Content-Range")
		if idx := strings.LastIndex(contentRange, "/"); idx != -1 {
			sizeStr := contentRange[idx+1:]
			if sizeStr != "*" {
				if size, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
					return size, true
				}
			}
		}
	case http.StatusOK:
		// Server ignored the Range header.
		if resp.ContentLength >= 0 {
			return resp.ContentLength, true
		}
	}
	return 0, false
}

func dispositionFilename(h http.Header) string {
	if _, name, _ := httpheader.ContentDisposition(h); name != "" {
		return utils.SanitizeFilename(name)
	}
	return ""
}

package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"accessetl/internal/metrics"
)

// HTTPSource downloads archives over http(s).
//
// When the response is an HTML page (a download landing page), the first
// link whose path ends in .zip is followed once.
type HTTPSource struct {
	Client    *http.Client
	UserAgent string
	JobName   string
	Logger    Logger
}

func (s *HTTPSource) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	body, final, isHTML, err := s.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if !isHTML {
		return body, nil
	}

	link, err := resolveArchiveLink(final, body)
	if err != nil {
		return nil, &DownloadError{URL: redact(u), Err: err}
	}
	if s.Logger != nil {
		s.Logger.Printf("Landing page %s links to %s", redact(final), redact(link))
	}

	body, _, isHTML, err = s.get(ctx, link)
	if err != nil {
		return nil, err
	}
	if isHTML {
		return nil, &DownloadError{URL: redact(link), Err: fmt.Errorf("archive link returned an html page")}
	}
	return body, nil
}

// get performs one GET and reads the whole body. It returns the final URL
// after redirects and whether the body is HTML.
func (s *HTTPSource) get(ctx context.Context, u *url.URL) ([]byte, *url.URL, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, false, &DownloadError{URL: redact(u), Err: fmt.Errorf("new request: %w", err)}
	}
	ua := s.UserAgent
	if ua == "" {
		ua = "accessetl/1.0"
	}
	req.Header.Set("User-Agent", ua)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	reqDur := time.Since(start)
	if err != nil {
		metrics.RecordHTTP(s.JobName, 0, err, reqDur, 0, 0)
		return nil, nil, false, &DownloadError{URL: redact(u), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.RecordHTTP(s.JobName, resp.StatusCode, nil, reqDur, time.Since(start)-reqDur, int64(len(b)))
		return nil, nil, false, &DownloadError{
			URL:        redact(u),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	respDur := time.Since(start) - reqDur
	metrics.RecordHTTP(s.JobName, resp.StatusCode, err, reqDur, respDur, int64(len(body)))
	if err != nil {
		return nil, nil, false, &DownloadError{URL: redact(u), StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	return body, final, isHTMLResponse(resp.Header.Get("Content-Type"), body), nil
}

func isHTMLResponse(contentType string, body []byte) bool {
	// Zip local file header, or the end record of an empty archive. The
	// payload wins over a misconfigured Content-Type.
	if bytes.HasPrefix(body, []byte("PK\x03\x04")) || bytes.HasPrefix(body, []byte("PK\x05\x06")) {
		return false
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "text/html", "application/xhtml+xml":
			return true
		case "application/zip", "application/octet-stream", "application/x-zip-compressed":
			return false
		}
	}
	return strings.HasPrefix(http.DetectContentType(body), "text/html")
}

// resolveArchiveLink returns the first <a href> on the page whose path ends
// in .zip, resolved against base.
func resolveArchiveLink(base *url.URL, page []byte) (*url.URL, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse landing page: %w", err)
	}

	var found *url.URL
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if strings.EqualFold(path.Ext(abs.Path), ".zip") {
			found = abs
			return false
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("landing page has no link to a .zip archive")
	}
	return found, nil
}

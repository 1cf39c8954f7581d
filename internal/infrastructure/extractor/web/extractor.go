package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxBodyBytes bounds how much of a page we will parse.
const maxBodyBytes = 8 << 20

// Extractor fetches a page and returns its visible body text with
// script/style/noscript subtrees removed. Fetches share a rate limiter so
// bulk ingestion does not hammer one host.
type Extractor struct {
	client  *http.Client
	limiter *rate.Limiter
}

type Options struct {
	Timeout        time.Duration
	RequestsPerSec float64
}

func New(opts Options) *Extractor {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = 2
	}
	return &Extractor{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (e *Extractor) Extract(ctx context.Context, src *domain.Source) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", domain.WrapError(domain.ErrFetch, "rate limit wait", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Origin, nil)
	if err != nil {
		return "", domain.WrapError(domain.ErrFetch, "build page request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", domain.WrapError(domain.ErrFetch, "fetch page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", domain.WrapError(domain.ErrNotFound, "fetch page",
			fmt.Errorf("status %s", resp.Status))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", domain.WrapError(domain.ErrFetch, "fetch page",
			fmt.Errorf("status %s", resp.Status))
	}

	root, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", domain.WrapError(domain.ErrFetch, "parse page html", err)
	}
	return ExtractText(root), nil
}

// ExtractText walks the parsed document and concatenates visible text,
// skipping non-content subtrees.
func ExtractText(root *html.Node) string {
	body := findBody(root)
	if body == nil {
		body = root
	}

	var out strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if out.Len() > 0 {
					out.WriteByte(' ')
				}
				out.WriteString(text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(body)
	return out.String()
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if body := findBody(child); body != nil {
			return body
		}
	}
	return nil
}

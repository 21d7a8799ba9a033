// Package openlibrary fetches edition metadata by ISBN from an Open Library
// compatible books API.
package openlibrary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://openlibrary.org"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when the API knows nothing about an ISBN.
var ErrNotFound = errors.New("openlibrary: no edition for isbn")

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// NewClient allows at most rps requests per second to baseURL. Throttled and
// 5xx responses are retried maxRetries times with doubling backoff.
func NewClient(baseURL, userAgent string, rps float64, maxRetries int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  userAgent,
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

// Edition is the subset of an edition record useful for cataloguing.
type Edition struct {
	ISBN      string
	Title     string
	Subtitle  string
	Authors   []string
	Publisher string
	Year      int
	Pages     int
	CoverURL  string
	Subjects  []string
}

// bookData matches one value of api/books?jscmd=data.
type bookData struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	PublishDate string `json:"publish_date"`
	Publishers  []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Subjects []struct {
		Name string `json:"name"`
	} `json:"subjects"`
	Cover struct {
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
	NumberOfPages int `json:"number_of_pages"`
}

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

// LookupISBN returns the edition for isbn. Hyphens and spaces are ignored.
func (c *Client) LookupISBN(ctx context.Context, isbn string) (Edition, error) {
	key := normalizeISBN(isbn)
	if key == "" {
		return Edition{}, ErrNotFound
	}
	u := fmt.Sprintf("%s/api/books?bibkeys=ISBN:%s&jscmd=data&format=json", c.baseURL, key)

	var res map[string]bookData
	if err := c.get(ctx, u, &res); err != nil {
		return Edition{}, err
	}
	d, ok := res["ISBN:"+key]
	if !ok {
		return Edition{}, ErrNotFound
	}

	e := Edition{
		ISBN:     key,
		Title:    strings.TrimSpace(d.Title),
		Subtitle: strings.TrimSpace(d.Subtitle),
		Pages:    d.NumberOfPages,
		CoverURL: d.Cover.Large,
	}
	if e.CoverURL == "" {
		e.CoverURL = d.Cover.Medium
	}
	for _, a := range d.Authors {
		e.Authors = append(e.Authors, a.Name)
	}
	if len(d.Publishers) > 0 {
		e.Publisher = d.Publishers[0].Name
	}
	for _, s := range d.Subjects {
		e.Subjects = append(e.Subjects, s.Name)
	}
	if m := yearPattern.FindStringSubmatch(d.PublishDate); m != nil {
		e.Year, _ = strconv.Atoi(m[1])
	}
	return e, nil
}

func normalizeISBN(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= '0' && r <= '9') || r == 'X' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *Client) get(ctx context.Context, url string, target any) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(c.backoff << (i - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retry, err := c.do(ctx, url, target)
		if err == nil || !retry {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) do(ctx context.Context, url string, target any) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return false, json.NewDecoder(resp.Body).Decode(target)
	case resp.StatusCode == http.StatusNotFound:
		return false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

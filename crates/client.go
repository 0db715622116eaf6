// Package crates looks up Rust crates on crates.io and builds documentation
// links for fully qualified item paths. It backs the crate and doc commands.
package crates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAPIURL   = "https://crates.io/api/v1"
	defaultInterval = time.Second
	defaultTimeout  = 10 * time.Second
)

var (
	// ErrNotFound is returned when crates.io has no crate by that name.
	ErrNotFound = errors.New("crate not found")
	// ErrInvalidName is returned for strings that cannot be crate names.
	ErrInvalidName = errors.New("invalid crate name")
	// ErrInvalidPath is returned for item paths that are not name::name::...
	ErrInvalidPath = errors.New("invalid item path")
)

// Config configures a Client. Zero values select the public crates.io API
// with one request per second.
type Config struct {
	APIURL    string
	UserAgent string
	Interval  time.Duration
	Timeout   time.Duration
}

// Crate is the subset of crates.io crate metadata the commands show.
type Crate struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	NewestVersion string    `json:"newest_version"`
	Downloads     int64     `json:"downloads"`
	Documentation string    `json:"documentation"`
	Repository    string    `json:"repository"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// URL is the crate's page on crates.io.
func (c *Crate) URL() string { return "https://crates.io/crates/" + c.Name }

// Client is safe for concurrent use. Requests share one rate limiter.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	limiter   *rate.Limiter
	http      *http.Client
}

// NewClient builds a client. No request is made until the first lookup.
func NewClient(c Config) *Client {
	base := strings.TrimRight(c.APIURL, "/")
	if base == "" {
		base = defaultAPIURL
	}
	interval := c.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   base,
		userAgent: c.UserAgent,
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Every(interval), 3),
		http:      &http.Client{Timeout: timeout},
	}
}

// Lookup fetches the metadata of the named crate.
func (c *Client) Lookup(ctx context.Context, name string) (*Crate, error) {
	name = strings.TrimSpace(name)
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("crates.io rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/crates/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crates.io lookup: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err), slog.String("component", "crates"))
		}
	}()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, fmt.Errorf("crates.io lookup: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var body struct {
		Crate Crate `json:"crate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode crates.io response: %w", err)
	}
	if body.Crate.Name == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &body.Crate, nil
}

// DocLink returns the documentation link for a fully qualified item path
// such as "anyhow::Result" or "std::vec::Vec". Standard library crates link
// to doc.rust-lang.org without a lookup; any other crate must exist on
// crates.io and links to docs.rs. Paths below the crate root open the
// rustdoc search for the full path.
func (c *Client) DocLink(ctx context.Context, path string) (string, error) {
	segs, err := ParsePath(path)
	if err != nil {
		return "", err
	}
	var base string
	if stdCrates[segs[0]] {
		base = "https://doc.rust-lang.org/" + segs[0] + "/"
	} else {
		cr, err := c.Lookup(ctx, segs[0])
		if err != nil {
			return "", err
		}
		base = fmt.Sprintf("https://docs.rs/%s/latest/%s/", cr.Name, strings.ReplaceAll(cr.Name, "-", "_"))
	}
	if len(segs) == 1 {
		return base, nil
	}
	return base + "?search=" + url.QueryEscape(strings.Join(segs, "::")), nil
}

var stdCrates = map[string]bool{"std": true, "core": true, "alloc": true, "proc_macro": true, "test": true}

// ValidName reports whether s can be a crates.io crate name: an ASCII letter
// followed by up to 63 letters, digits, '-' or '_'.
func ValidName(s string) bool {
	if s == "" || len(s) > 64 || !isLetter(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if b := s[i]; !isLetter(b) && !isDigit(b) && b != '-' && b != '_' {
			return false
		}
	}
	return true
}

// ParsePath splits an item path on "::". The first segment is a crate name
// with '-' allowed; the rest are identifiers.
func ParsePath(path string) ([]string, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "::")
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segs := strings.Split(path, "::")
	if !ValidName(segs[0]) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	segs[0] = strings.ReplaceAll(segs[0], "-", "_")
	for _, s := range segs[1:] {
		if !isIdent(s) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

func isIdent(s string) bool {
	if s == "" || (!isLetter(s[0]) && s[0] != '_') || s == "_" {
		return false
	}
	for i := 1; i < len(s); i++ {
		if b := s[i]; !isLetter(b) && !isDigit(b) && b != '_' {
			return false
		}
	}
	return true
}

func isLetter(b byte) bool { return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' }
func isDigit(b byte) bool  { return b >= '0' && b <= '9' }

package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"sync"
	"syscall"
	"time"

	appLog "planner/internal/log"
)

// maxFeedSize bounds how much of a remote calendar is read.
const maxFeedSize = 10 << 20

var (
	errPrivateAddress = errors.New("calendar host resolves to a non-public address")
	errFeedTooLarge   = errors.New("calendar feed exceeds size limit")
)

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598), which
// netip does not count as private.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// FetchResult is the outcome of fetching one remote calendar.
type FetchResult struct {
	URL       string
	Body      []byte
	FromCache bool // true when the server answered 304 and the cached body was reused
}

type cacheEntry struct {
	etag         string
	lastModified string
	body         []byte
}

// Fetcher downloads calendar feeds for import, honoring ETag and
// Last-Modified so repeated imports of an unchanged feed are cheap.
type Fetcher struct {
	client  *http.Client
	maxSize int64

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewFetcher uses client as given. A nil client gets the default one,
// which refuses to connect to loopback, private, link-local and other
// non-public addresses, so user supplied URLs cannot reach internal hosts.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = publicOnlyClient()
	}
	return &Fetcher{client: client, maxSize: maxFeedSize, cache: make(map[string]cacheEntry)}
}

func publicOnlyClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: rejectPrivate,
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	// A proxy would be dialled instead of the feed host.
	tr.Proxy = nil
	tr.DialContext = dialer.DialContext
	return &http.Client{Timeout: 15 * time.Second, Transport: tr}
}

// rejectPrivate runs after name resolution for every connection attempt,
// redirects included, so the check covers the address actually dialled.
func rejectPrivate(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	ip = ip.Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() || ip.IsLoopback() || sharedAddressSpace.Contains(ip) {
		return fmt.Errorf("%w: %s", errPrivateAddress, ip)
	}
	return nil
}

// Fetch retrieves rawURL. Only http and https are accepted. On a network
// error or a non-OK status a previously fetched body is returned instead,
// when there is one.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return FetchResult{}, fmt.Errorf("unsupported calendar url %q", redactURL(rawURL))
	}

	f.mu.Lock()
	cached, haveCache := f.cache[rawURL]
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "text/calendar")
	if cached.etag != "" {
		req.Header.Set("If-None-Match", cached.etag)
	}
	if cached.lastModified != "" {
		req.Header.Set("If-Modified-Since", cached.lastModified)
	}

	appLog.Info("ics fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		if haveCache {
			appLog.Error("ics fetch network error, using cached body", err, "url", redactURL(rawURL))
			return FetchResult{URL: rawURL, Body: cached.body, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
		if err != nil {
			return FetchResult{}, err
		}
		if int64(len(body)) > f.maxSize {
			return FetchResult{}, fmt.Errorf("%w (%d bytes)", errFeedTooLarge, f.maxSize)
		}
		f.mu.Lock()
		f.cache[rawURL] = cacheEntry{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         body,
		}
		f.mu.Unlock()
		appLog.Info("ics fetch success", "url", redactURL(rawURL), "bytes", len(body))
		return FetchResult{URL: rawURL, Body: body}, nil

	case http.StatusNotModified:
		if !haveCache {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("ics fetch not modified; using cache", "url", redactURL(rawURL))
		return FetchResult{URL: rawURL, Body: cached.body, FromCache: true}, nil

	default:
		if haveCache {
			appLog.Error("ics fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(rawURL))
			return FetchResult{URL: rawURL, Body: cached.body, FromCache: true}, nil
		}
		return FetchResult{}, errors.New(resp.Status)
	}
}

// redactURL keeps only scheme and host, since feed URLs often embed
// private tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}

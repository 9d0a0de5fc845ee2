// Package remote speaks git's smart-HTTP protocol: ref discovery, pack
// fetch through upload-pack and pack push through receive-pack.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/pktline"

	"github.com/odvcencio/sandgit/pkg/object"
)

// DefaultUserAgent is sent as the HTTP User-Agent and the protocol agent
// capability.
const DefaultUserAgent = "sandgit/1.0"

// Response limits per request kind.
const (
	responseLimitRefs   = 8 << 20   // 8MB
	responseLimitPack   = 512 << 20 // 512MB
	responseLimitReport = 1 << 20   // 1MB
)

// Options configures a Client. Zero values get defaults: no timeout beyond
// the caller's context, one attempt and net/http's default client.
type Options struct {
	Credentials CredentialLookup
	// Timeout bounds each operation (discovery, fetch, push) in addition to
	// the caller's context.
	Timeout time.Duration
	// Attempts is how often idempotent GETs are tried. POSTs are never
	// retried.
	Attempts     int
	RetryBackoff time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
	UserAgent    string
}

// Client is a smart-HTTP transport client. It holds no per-remote state
// and is safe for concurrent use.
type Client struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
}

func NewClient(opts Options) *Client {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	c := &Client{opts: opts, http: opts.HTTPClient, logger: opts.Logger}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Discover fetches the ref advertisement for svc.
func (c *Client) Discover(ctx context.Context, rawURL string, svc Service) (*Advertisement, error) {
	const op = "discover"
	ep, err := parseEndpoint(rawURL)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Op: op, Err: err}
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.base+"/info/refs?service="+string(svc), nil)
	if err != nil {
		return nil, &TransportError{URL: ep.base, Op: op, Err: err}
	}
	body, err := c.do(ctx, req, ep, true, responseLimitRefs)
	if err != nil {
		return nil, &TransportError{URL: ep.base, Op: op, Err: err}
	}
	adv, err := parseAdvertisement(bytes.NewReader(body), svc)
	if err != nil {
		return nil, &TransportError{URL: ep.base, Op: op, Err: err}
	}
	c.logger.Debug("remote refs discovered", "url", ep.base, "service", svc, "refs", len(adv.Refs), "head", adv.Head)
	return adv, nil
}

// FetchPack negotiates with upload-pack and returns the raw pack for the
// objects reachable from wants but not from haves. caps are the
// capabilities from Discover; only the ones listed there are requested.
func (c *Client) FetchPack(ctx context.Context, rawURL string, wants, haves []object.Hash, caps Capabilities) ([]byte, error) {
	const op = "fetch"
	ep, err := parseEndpoint(rawURL)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Op: op, Err: err}
	}
	if len(wants) == 0 {
		return nil, &TransportError{URL: ep.base, Op: op, Err: errors.New("at least one want is required")}
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var reqBody bytes.Buffer
	if err := encodeUploadRequest(&reqBody, wants, haves, caps, c.opts.UserAgent); err != nil {
		return nil, &TransportError{URL: ep.base, Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.base+"/"+string(UploadPack), &reqBody)
	if err != nil {
		return nil, &TransportError{URL: ep.base, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-git-upload-pack-request")
	req.Header.Set("Accept", "application/x-git-upload-pack-result")
	body, err := c.do(ctx, req, ep, false, responseLimitPack)
	if err != nil {
		return nil, &TransportError{URL: ep.base, Op: op, Err: err}
	}
	pack, err := readUploadResult(bytes.NewReader(body), caps.Has("side-band-64k"), c.logger)
	if err != nil {
		return nil, &TransportError{URL: ep.base, Op: op, Err: err}
	}
	c.logger.Debug("pack fetched", "url", ep.base, "wants", len(wants), "haves", len(haves), "bytes", len(pack))
	return pack, nil
}

// readUploadResult skips the ACK/NAK negotiation lines and returns the
// pack that follows, demultiplexing it when side-band was requested.
func readUploadResult(r io.Reader, sideband bool, logger *slog.Logger) ([]byte, error) {
	sc := pktline.NewScanner(r)
	for sc.Scan() {
		line := sc.Bytes()
		switch {
		case len(line) == 0:
			continue
		case bytes.HasPrefix(line, []byte("NAK")), bytes.HasPrefix(line, []byte("ACK ")):
			if !sideband {
				// The raw pack follows the single negotiation line.
				return io.ReadAll(r)
			}
			continue
		case bytes.HasPrefix(line, []byte("ERR ")):
			return nil, &RemoteError{Message: string(line[4:])}
		}
		if !sideband {
			return nil, fmt.Errorf("%w: unexpected line %q before pack", ErrProtocol, line)
		}
		sr := &SidebandReader{sc: sc, pending: append([]byte(nil), line...)}
		progress := func(msg string) { logger.Debug("remote progress", "msg", strings.TrimSpace(msg)) }
		return io.ReadAll(newSidebandDataReader(sr, progress))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return nil, fmt.Errorf("%w: response ended before pack", ErrProtocol)
}

// Push sends ref update commands and a pack to receive-pack and returns the
// server's report. A report that rejects anything is returned together
// with an error wrapping ErrPushRejected.
func (c *Client) Push(ctx context.Context, rawURL string, cmds []Command, pack []byte, caps Capabilities) (*PushReport, error) {
	const op = "push"
	ep, err := parseEndpoint(rawURL)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Op: op, Err: err}
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var reqBody bytes.Buffer
	if err := encodePushRequest(&reqBody, cmds, pack, caps, c.opts.UserAgent); err != nil {
		return nil, &TransportError{URL: ep.base, Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.base+"/"+string(ReceivePack), &reqBody)
	if err != nil {
		return nil, &TransportError{URL: ep.base, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-git-receive-pack-request")
	req.Header.Set("Accept", "application/x-git-receive-pack-result")
	body, err := c.do(ctx, req, ep, false, responseLimitReport)
	if err != nil {
		return nil, &TransportError{URL: ep.base, Op: op, Err: err}
	}

	var status io.Reader = bytes.NewReader(body)
	if caps.Has("side-band-64k") {
		status = NewSidebandDataReader(status, func(msg string) {
			c.logger.Debug("remote progress", "msg", strings.TrimSpace(msg))
		})
	}
	report, err := parseReportStatus(status)
	if err != nil {
		return nil, &TransportError{URL: ep.base, Op: op, Err: err}
	}
	c.logger.Debug("push reported", "url", ep.base, "unpack", report.UnpackStatus, "refs", len(report.Refs))
	if err := report.Err(); err != nil {
		return report, &TransportError{URL: ep.base, Op: op, Err: err}
	}
	return report, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout > 0 {
		return context.WithTimeout(ctx, c.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// do sends req with credentials and returns the decoded body of a 200
// response. Only idempotent requests may set retry.
func (c *Client) do(ctx context.Context, req *http.Request, ep endpoint, retry bool, maxBytes int64) ([]byte, error) {
	c.applyAuth(req, ep)
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept-Encoding", acceptEncoding)

	var resp *http.Response
	var err error
	if retry {
		resp, err = retryDo(c.http, req, c.opts.Attempts, c.opts.RetryBackoff)
	} else {
		resp, err = c.http.Do(req)
	}
	if err != nil {
		return nil, timeoutError(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w (HTTP %d)", ErrAuthRequired, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, text)
	}

	rc, err := decodeBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(io.LimitReader(rc, maxBytes+1))
	if err != nil {
		return nil, timeoutError(ctx, err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxBytes)
	}
	return body, nil
}

func (c *Client) applyAuth(req *http.Request, ep endpoint) {
	if c.opts.Credentials != nil {
		if cred, ok := c.opts.Credentials.Lookup(ep.origin); ok {
			cred.apply(req)
			return
		}
	}
	if ep.user != nil {
		ep.user.apply(req)
	}
}

func timeoutError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

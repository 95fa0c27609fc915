// Package backend talks to the extraction service: it posts submissions with upload progress and fetches the
// resulting artifacts.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/alanbriolat/extractor"
	"github.com/alanbriolat/extractor/util"
)

const (
	ExtractTweetsPath = "/extract_tweets"
	ProcessAudioPath  = "/process_audio"

	// Used when the download link doesn't end in a usable filename.
	fallbackFilename = "download.bin"
	// Upper bound on how much of an error response body is kept.
	maxErrorBody = 4096
)

var (
	ErrNoDownloadLink = errors.New("response has no download link")
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

type extractTweetsBody struct {
	Username string `json:"username"`
}

type processAudioBody struct {
	URL         []string `json:"url"`
	Diarization bool     `json:"diarization"`
}

type Client struct {
	base *url.URL
	http *http.Client
	log  *zap.SugaredLogger
}

var _ extractor.Submitter = (*Client)(nil)

// New creates a Client for the backend at config.BackendURL.
func New(config extractor.Config) (*Client, error) {
	base, err := url.Parse(config.BackendURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", config.BackendURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", config.BackendURL)
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: config.RequestTimeout},
		log:  zap.S().Named("backend"),
	}, nil
}

// Submit dispatches the request to the endpoint matching its mode.
func (c *Client) Submit(ctx context.Context, req extractor.Request, progress extractor.ProgressFunc) (extractor.Response, error) {
	switch req.Mode {
	case extractor.ModeTwitter:
		return c.ExtractTweets(ctx, req.Username, progress)
	case extractor.ModeYouTube:
		return c.ProcessAudio(ctx, req.URLs, req.Diarization, progress)
	default:
		return extractor.Response{}, fmt.Errorf("%w: %q", extractor.ErrUnknownMode, req.Mode)
	}
}

func (c *Client) ExtractTweets(ctx context.Context, username string, progress extractor.ProgressFunc) (extractor.Response, error) {
	return c.post(ctx, ExtractTweetsPath, extractTweetsBody{Username: username}, progress)
}

func (c *Client) ProcessAudio(ctx context.Context, urls []string, diarization bool, progress extractor.ProgressFunc) (extractor.Response, error) {
	if urls == nil {
		urls = []string{}
	}
	return c.post(ctx, ProcessAudioPath, processAudioBody{URL: urls, Diarization: diarization}, progress)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, progress extractor.ProgressFunc) (extractor.Response, error) {
	var response extractor.Response
	data, err := json.Marshal(body)
	if err != nil {
		return response, fmt.Errorf("failed to encode request: %w", err)
	}
	total := int64(len(data))
	reader := newProgressReader(ctx, bytes.NewReader(data), total, progress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path), reader)
	if err != nil {
		return response, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.log.Debugw("posting", "url", req.URL.String(), "bytes", total)
	reader.report()
	resp, err := c.http.Do(req)
	if err != nil {
		return response, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return response, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return response, fmt.Errorf("failed to decode response: %w", err)
	}
	c.log.Debugw("response", "url", req.URL.String(), "download_link", response.DownloadLink)
	return response, nil
}

// Fetch downloads the artifact behind link (absolute, or relative to the backend) into dir, returning the path of the
// saved file.
func (c *Client) Fetch(ctx context.Context, link string, dir string, progress extractor.ProgressFunc) (string, error) {
	if link == "" {
		return "", ErrNoDownloadLink
	}
	target, err := c.base.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid download link %q: %w", link, err)
	}
	filename, err := util.FilenameFromURL(target)
	if err != nil {
		filename = fallbackFilename
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(dir, 0775); err != nil {
		return "", fmt.Errorf("failed to create target dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to open target file: %w", err)
	}
	defer f.Close()

	counter := &progressWriter{total: resp.ContentLength, progress: progress}
	if _, err := io.Copy(io.MultiWriter(f, counter), resp.Body); err != nil {
		return "", fmt.Errorf("failed to save stream: %w", err)
	}
	c.log.Debugw("fetched", "url", target.String(), "path", path, "bytes", counter.written)
	return path, nil
}

func (c *Client) resolve(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// Package pubmed fetches bibliographic summaries from the NCBI E-utilities
// ESummary endpoint.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/turtacn/metabo-search/internal/config"
	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/pkg/errors"
)

const (
	// maxIDsPerRequest keeps GET URLs within the length E-utilities accepts.
	maxIDsPerRequest = 200
	articleURLFormat = "https://pubmed.ncbi.nlm.nih.gov/%s/"
)

// Client calls ESummary for the pubmed database.
type Client struct {
	baseURL      string
	tool         string
	email        string
	httpClient   *http.Client
	logger       logging.Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets the retry budget for 5xx and transport failures.
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.retryMax = max
		c.retryWaitMin = waitMin
		c.retryWaitMax = waitMax
	}
}

func NewClient(cfg config.PubMedConfig, log logging.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		tool:         cfg.Tool,
		email:        cfg.Email,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		logger:       log,
		retryMax:     2,
		retryWaitMin: 300 * time.Millisecond,
		retryWaitMax: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type esummaryEntry struct {
	Title           string `json:"title"`
	FullJournalName string `json:"fulljournalname"`
	Source          string `json:"source"`
	SortPubDate     string `json:"sortpubdate"`
	PubDate         string `json:"pubdate"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ArticleIDs []struct {
		IDType string `json:"idtype"`
		Value  string `json:"value"`
	} `json:"articleids"`
}

// FetchSummaries returns one Publication per PMID, in input order.  PMIDs the
// service does not know still yield an entry carrying only PMID and URL.
func (c *Client) FetchSummaries(ctx context.Context, pmids []string) ([]compound.Publication, error) {
	if len(pmids) == 0 {
		return []compound.Publication{}, nil
	}

	entries := make(map[string]json.RawMessage, len(pmids))
	for start := 0; start < len(pmids); start += maxIDsPerRequest {
		end := start + maxIDsPerRequest
		if end > len(pmids) {
			end = len(pmids)
		}
		chunk, err := c.fetchChunk(ctx, pmids[start:end])
		if err != nil {
			return nil, err
		}
		for k, v := range chunk {
			entries[k] = v
		}
	}

	out := make([]compound.Publication, 0, len(pmids))
	for _, pmid := range pmids {
		pub := compound.Publication{
			PMID:    pmid,
			Authors: []string{},
			URL:     fmt.Sprintf(articleURLFormat, pmid),
		}
		if raw, ok := entries[pmid]; ok {
			var e esummaryEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeSummaryParseFailed, "malformed summary entry").
					WithDetail("pmid=" + pmid)
			}
			fillPublication(&pub, &e)
		}
		out = append(out, pub)
	}
	return out, nil
}

func fillPublication(pub *compound.Publication, e *esummaryEntry) {
	pub.Title = e.Title
	pub.Journal = e.FullJournalName
	if pub.Journal == "" {
		pub.Journal = e.Source
	}
	pub.PublicationDate = e.SortPubDate
	if pub.PublicationDate == "" {
		pub.PublicationDate = e.PubDate
	}
	for _, a := range e.Authors {
		if a.Name != "" {
			pub.Authors = append(pub.Authors, a.Name)
		}
	}
	for _, id := range e.ArticleIDs {
		if id.IDType == "doi" {
			pub.DOI = id.Value
			break
		}
	}
}

func (c *Client) summaryURL(pmids []string) string {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "json")
	params.Set("tool", c.tool)
	if c.email != "" {
		params.Set("email", c.email)
	}
	return c.baseURL + "/esummary.fcgi?" + params.Encode()
}

func (c *Client) fetchChunk(ctx context.Context, pmids []string) (map[string]json.RawMessage, error) {
	target := c.summaryURL(pmids)

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("Retrying summary request",
				logging.Int("attempt", attempt), logging.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "summary request cancelled")
			}
		}

		body, retry, err := c.get(ctx, target)
		if err == nil {
			return decodeResult(body)
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// get performs one request.  retry reports whether the failure is transient.
func (c *Client) get(ctx context.Context, target string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeSummaryFetchFailed, "failed to build summary request")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, errors.Wrap(err, errors.ErrCodeSummaryFetchFailed, "summary request failed")
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, errors.Wrap(err, errors.ErrCodeSummaryFetchFailed, "failed to read summary response")
	}
	c.logger.Debug("ESummary response",
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		err := errors.Newf(errors.ErrCodeSummaryFetchFailed, "summary request returned status %d", resp.StatusCode)
		return nil, resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests, err
	}
	return body, false, nil
}

func decodeResult(body []byte) (map[string]json.RawMessage, error) {
	var r esummaryResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSummaryParseFailed, "malformed summary response")
	}
	delete(r.Result, "uids")
	if r.Result == nil {
		return map[string]json.RawMessage{}, nil
	}
	return r.Result, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if backoff > c.retryWaitMax {
		backoff = c.retryWaitMax
	}
	if backoff <= 0 {
		return 0
	}
	// 0-25% jitter
	if quarter := int64(backoff / 4); quarter > 0 {
		backoff += time.Duration(rand.Int63n(quarter))
	}
	return backoff
}

package pm25

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/smukkama/pm25-intent/internal/reading"
)

// DefaultTimeout bounds a single FetchReading call
const DefaultTimeout = 10 * time.Second

// Reading is the decoded "data" object of the API response
type Reading struct {
	PM25 []reading.Sample `json:"pm25"`
}

// Value returns the normalized concentration in µg/m³
func (r Reading) Value() float64 {
	return reading.Normalize(r.PM25)
}

// Fetcher is the interface the intent consumes
type Fetcher interface {
	FetchReading(ctx context.Context, lat, lng float64) (Reading, error)
}

// Client queries a PM2.5-by-location endpoint
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a client for baseURL. A zero timeout means DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// RequestURL builds the GET URL for a coordinate. Coordinates are written
// with six decimals and existing query parameters are kept.
func (c *Client) RequestURL(lat, lng float64) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("unsupported base url %q", c.baseURL)
	}

	q := u.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', 6, 64))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchReading performs one GET, no retries. Failures are *Error.
func (c *Client) FetchReading(ctx context.Context, lat, lng float64) (Reading, error) {
	u, err := c.RequestURL(lat, lng)
	if err != nil {
		return Reading{}, networkError(ReasonInvalidURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Reading{}, networkError(ReasonInvalidURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Reading{}, networkError(ReasonRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		e := networkError(ReasonBadStatus, fmt.Errorf("status %d", resp.StatusCode))
		e.Status = resp.StatusCode
		return Reading{}, e
	}

	var payload struct {
		Data *struct {
			PM25 *[]reading.Sample `json:"pm25"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		var sampleErr *reading.DecodeError
		if errors.As(err, &sampleErr) {
			return Reading{}, dataError(ReasonInvalidType, err)
		}
		// a deadline hit while reading the body is still a transport failure
		if ctx.Err() != nil || isTimeout(err) {
			return Reading{}, networkError(ReasonRequestFailed, err)
		}
		return Reading{}, dataError(ReasonParse, err)
	}
	if payload.Data == nil {
		return Reading{}, dataError(ReasonParse, errors.New("missing data object"))
	}
	if payload.Data.PM25 == nil {
		return Reading{}, dataError(ReasonParse, errors.New("missing pm25 field"))
	}

	return Reading{PM25: *payload.Data.PM25}, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rollcall/internal/faults"
)

// Client calls the external catalog source over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client with a short timeout; a slow catalog must
// not hold up sibling lookups in a batch longer than one request.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Sections fetches the section listing for one (school, courseNumber)
// pair. Failures are typed: an unreachable or non-2xx source maps to
// ErrUpstreamUnavailable, a non-JSON body to ErrUpstreamNotJSON, and
// JSON of the wrong shape (or with no sections) to ErrUpstreamUnparsable.
func (c *Client) Sections(ctx context.Context, school, courseNumber string) ([]Section, error) {
	url := fmt.Sprintf("%s/%s/%s", c.BaseURL, school, courseNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", faults.ErrUpstreamUnavailable, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrUpstreamUnavailable, err)
	}
	if !json.Valid(body) {
		return nil, faults.ErrUpstreamNotJSON
	}

	var sections []Section
	if err := json.Unmarshal(body, &sections); err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrUpstreamUnparsable, err)
	}
	if len(sections) == 0 {
		return nil, faults.ErrUpstreamUnparsable
	}
	for i := range sections {
		if sections[i].School == "" {
			sections[i].School = school
		}
		if sections[i].CourseNumber == "" {
			sections[i].CourseNumber = courseNumber
		}
	}
	return sections, nil
}

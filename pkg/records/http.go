package records

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPResolver resolves records against the repository's REST API.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver creates a resolver for the repository API rooted at
// baseURL.
func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPResolver) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("repository request failed: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusGone:
		return ErrNotFound
	case res.StatusCode != http.StatusOK:
		return fmt.Errorf("repository returned status %d for %s", res.StatusCode, u)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode repository response: %w", err)
	}
	return nil
}

// Resolve returns the record with the given id.
func (r *HTTPResolver) Resolve(ctx context.Context, id string) (*Record, error) {
	var rec Record
	u := fmt.Sprintf("%s/api/records/%s", r.baseURL, url.PathEscape(id))
	if err := r.getJSON(ctx, u, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ResolveFile returns the named file object within a record.
func (r *HTTPResolver) ResolveFile(ctx context.Context, id, filename string) (*FileObject, error) {
	var f FileObject
	u := fmt.Sprintf("%s/api/records/%s/files/%s", r.baseURL, url.PathEscape(id), url.PathEscape(filename))
	if err := r.getJSON(ctx, u, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Siblings returns every version instance belonging to familyID.
func (r *HTTPResolver) Siblings(ctx context.Context, familyID string) ([]*Record, error) {
	var result struct {
		Hits []*Record `json:"hits"`
	}
	u := fmt.Sprintf("%s/api/records?family=%s&all_versions=true", r.baseURL, url.QueryEscape(familyID))
	if err := r.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}
	return result.Hits, nil
}

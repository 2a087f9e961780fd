package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/turtacn/aivis/pkg/errors"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

// TargetsClient covers the /api/targets endpoints.
type TargetsClient struct {
	client *Client
}

// Target is the wire form of a visibility target.
type Target struct {
	ID           string               `json:"id"`
	BusinessName string               `json:"businessName"`
	WebsiteURL   string               `json:"websiteUrl"`
	Keywords     []visibility.Keyword `json:"keywords"`
	Prompts      []visibility.Prompt  `json:"prompts"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

// TargetList is one page of targets.
type TargetList struct {
	Targets []Target `json:"targets"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// InitRequest creates a target and generates its content.
type InitRequest struct {
	BusinessName string `json:"businessName"`
	WebsiteURL   string `json:"websiteUrl"`
}

// AnalyzeOptions tunes one analysis run. The zero value uses server
// defaults.
type AnalyzeOptions struct {
	TrialsPerPair int `json:"trialsPerPair,omitempty"`
}

// AsyncAccepted acknowledges a queued analysis run.
type AsyncAccepted struct {
	TargetID string `json:"targetId"`
	Status   string `json:"status"`
}

// Init creates a target: the server fetches the site, extracts its text,
// and generates keywords and prompts.
func (t *TargetsClient) Init(ctx context.Context, req InitRequest) (*Target, error) {
	if req.BusinessName == "" || req.WebsiteURL == "" {
		return nil, fmt.Errorf("%w: businessName and websiteUrl are required", errors.ErrInvalidConfig)
	}
	var out Target
	if err := t.client.post(ctx, "/api/targets/init", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get loads one target.
func (t *TargetsClient) Get(ctx context.Context, targetID string) (*Target, error) {
	var out Target
	if err := t.client.get(ctx, "/api/targets/"+url.PathEscape(targetID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List pages through targets, newest first.
func (t *TargetsClient) List(ctx context.Context, limit, offset int) (*TargetList, error) {
	path := fmt.Sprintf("/api/targets?limit=%d&offset=%d", limit, offset)
	var out TargetList
	if err := t.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateKeywords replaces the target's keywords; the server rebuilds the
// prompts from them.
func (t *TargetsClient) UpdateKeywords(ctx context.Context, targetID string, keywords []string) (*Target, error) {
	body := map[string][]string{"keywords": keywords}
	var out Target
	if err := t.client.put(ctx, "/api/targets/"+url.PathEscape(targetID)+"/keywords", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePrompts replaces the target's prompts.
func (t *TargetsClient) UpdatePrompts(ctx context.Context, targetID string, prompts []string) (*Target, error) {
	body := map[string][]string{"prompts": prompts}
	var out Target
	if err := t.client.put(ctx, "/api/targets/"+url.PathEscape(targetID)+"/prompts", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeResult is the response of a synchronous analysis run.
type AnalyzeResult struct {
	TargetID   string                     `json:"targetId"`
	Score      visibility.VisibilityScore `json:"score"`
	AnalyzedAt time.Time                  `json:"analyzedAt"`
}

// Analyze runs the sampling pipeline synchronously and returns the score.
func (t *TargetsClient) Analyze(ctx context.Context, targetID string, opts *AnalyzeOptions) (*AnalyzeResult, error) {
	var body interface{}
	if opts != nil && opts.TrialsPerPair > 0 {
		body = opts
	}
	var out AnalyzeResult
	if err := t.client.post(ctx, "/api/targets/"+url.PathEscape(targetID)+"/analyze", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeAsync queues an analysis run on the worker.
func (t *TargetsClient) AnalyzeAsync(ctx context.Context, targetID string) (*AsyncAccepted, error) {
	var out AsyncAccepted
	if err := t.client.post(ctx, "/api/targets/"+url.PathEscape(targetID)+"/analyze/async", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a target.
func (t *TargetsClient) Delete(ctx context.Context, targetID string) error {
	return t.client.del(ctx, "/api/targets/"+url.PathEscape(targetID))
}

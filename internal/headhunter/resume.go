package headhunter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/hh-toucher/internal/utils"
)

// hh.ru renders offsets without a colon (+0300).
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-0700",
}

// Resume is the part of an hh.ru resume the toucher cares about.
type Resume struct {
	ID     string
	Title  string
	Status string
	Access string
	// NextPublishAt is the earliest moment the API accepts another publish.
	// Zero when the API does not report it.
	NextPublishAt time.Time
}

type resumeItem struct {
	ID    string `mapstructure:"id"`
	Title string `mapstructure:"title"`
}

type resumeResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status struct {
		ID string `json:"id"`
	} `json:"status"`
	Access struct {
		Type struct {
			ID string `json:"id"`
		} `json:"type"`
	} `json:"access"`
	NextPublishAt *string `json:"next_publish_at"`
}

// Outcome of a publish call that did not fail.
type Outcome int

const (
	// Updated means the resume was published.
	Updated Outcome = iota + 1
	// RateLimited means the API refused because the resume was published recently.
	RateLimited
)

func (o Outcome) String() string {
	switch o {
	case Updated:
		return "updated"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// TouchResult carries the outcome together with the resume as the API sees it after the call.
type TouchResult struct {
	Outcome Outcome
	Resume  *Resume
}

// ListResumes returns every resume of the token owner. The listing only has
// ids, so each resume is fetched separately.
func (c *Client) ListResumes(ctx context.Context) ([]*Resume, error) {
	apiURLMineResumes := fmt.Sprintf("%s/resumes/%s", c.APIURL, mineResumeID)

	items, err := c.GetItems(ctx, apiURLMineResumes, url.Values{})
	if err != nil {
		return nil, err
	}

	var listed []resumeItem
	if err = mapstructure.Decode(items, &listed); err != nil {
		return nil, fmt.Errorf("decoding resume list: %w", err)
	}

	resumes := make([]*Resume, 0, len(listed))
	for _, item := range listed {
		resume, err := c.GetResume(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		resumes = append(resumes, resume)
	}

	return resumes, nil
}

// GetResume fetches a single resume by id.
func (c *Client) GetResume(ctx context.Context, id string) (*Resume, error) {
	if id == "" {
		return nil, fmt.Errorf("resume id is required")
	}

	apiURL := fmt.Sprintf("%s/resumes/%s", c.APIURL, url.PathEscape(id))

	var raw resumeResponse
	if err := c.getJSON(ctx, apiURL, nil, &raw); err != nil {
		return nil, err
	}

	resume := &Resume{
		ID:     raw.ID,
		Title:  raw.Title,
		Status: raw.Status.ID,
		Access: raw.Access.Type.ID,
	}

	if raw.NextPublishAt != nil && *raw.NextPublishAt != "" {
		at, err := parseTime(*raw.NextPublishAt)
		if err != nil {
			return nil, fmt.Errorf("resume %s: next_publish_at: %w", id, err)
		}
		resume.NextPublishAt = at
	}

	return resume, nil
}

// TouchResume publishes the resume again. A rate limited call is not an error:
// the result carries the refreshed resume so the caller can reschedule.
func (c *Client) TouchResume(ctx context.Context, id string) (*TouchResult, error) {
	apiURLPublish := fmt.Sprintf("%s/resumes/%s/publish", c.APIURL, url.PathEscape(id))

	status, body, err := c.post(ctx, apiURLPublish)
	if err != nil {
		return nil, err
	}

	var outcome Outcome
	switch {
	case status == http.StatusForbidden:
		return nil, &AuthError{Endpoint: apiURLPublish, Status: status}
	case status == http.StatusBadRequest:
		return nil, &ResumeUpdateError{ResumeID: id, Status: status, Description: describe(body)}
	case status == http.StatusTooManyRequests:
		outcome = RateLimited
	case status >= 200 && status < 300:
		outcome = Updated
	default:
		return nil, &StatusError{Endpoint: apiURLPublish, Status: status}
	}

	c.logger.Debug("publish answered", zap.String("resume_id", id), zap.Int("status", status), zap.Stringer("outcome", outcome))

	resume, err := c.GetResume(ctx, id)
	if err != nil {
		return nil, err
	}

	return &TouchResult{Outcome: outcome, Resume: resume}, nil
}

func parseTime(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// describe extracts error values from an hh.ru error body.
func describe(body []byte) string {
	var payload struct {
		Errors []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"errors"`
		Description string `json:"description"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return utils.TruncateForLog(string(body), 200)
	}

	parts := make([]string, 0, len(payload.Errors)+1)
	if payload.Description != "" {
		parts = append(parts, payload.Description)
	}
	for _, e := range payload.Errors {
		if e.Value != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", e.Type, e.Value))
			continue
		}
		parts = append(parts, e.Type)
	}

	return strings.Join(parts, "; ")
}

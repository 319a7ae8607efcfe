// Package genai adapts the analysis Backend to a generative-model REST API
// that speaks the generateContent request shape.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"kycbuster/internal/evidence/analysis"
	"kycbuster/internal/evidence/models"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultModel      = "gemini-3-flash-preview"
	DefaultVideoModel = "gemini-2.5-flash"

	maxResponseBytes = 4 << 20
)

// Config holds the connection settings for the model API.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	VideoModel string
}

// Client implements analysis.Backend.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a client. The API key is checked per call so a missing key
// surfaces as an Unconfigured analysis failure instead of a startup crash.
func New(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.VideoModel == "" {
		cfg.VideoModel = DefaultVideoModel
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient}
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends the instructions and media as one user turn and returns the
// concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, req analysis.Request) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", analysis.NewError(analysis.CategoryUnconfigured, "analysis API key is not set", nil)
	}

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return "", analysis.NewError(analysis.CategoryTransport, "encode request", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.model(req.Kind)))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", analysis.NewError(analysis.CategoryTransport, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", analysis.NewError(analysis.CategoryTransport, "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", analysis.NewError(analysis.CategoryTransport, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, payload)
	}

	var out generateResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", analysis.NewError(analysis.CategoryInvalidResponse, "decode response envelope", err)
	}
	if len(out.Candidates) == 0 {
		return "", analysis.NewError(analysis.CategoryInvalidResponse, "response has no candidates", nil)
	}
	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	if text.Len() == 0 {
		return "", analysis.NewError(analysis.CategoryInvalidResponse, "response has no text", nil)
	}
	return text.String(), nil
}

func (c *Client) model(kind models.Kind) string {
	if kind == models.KindVideo {
		return c.cfg.VideoModel
	}
	return c.cfg.Model
}

func buildRequest(req analysis.Request) generateRequest {
	parts := make([]part, 0, len(req.Media)+1)
	parts = append(parts, part{Text: req.Instructions})
	for _, m := range req.Media {
		mimeType := m.MIMEType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(m.Data),
		}})
	}
	return generateRequest{
		Contents:         []content{{Parts: parts}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	}
}

// statusError maps API status codes onto the analysis taxonomy. A rejected
// key is a configuration problem, not a retryable one.
func statusError(status int, payload []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(payload, &apiErr)
	msg := apiErr.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	cause := errors.New(msg)

	switch {
	case status == http.StatusTooManyRequests || apiErr.Error.Status == "RESOURCE_EXHAUSTED":
		return analysis.NewError(analysis.CategoryRateLimited, "quota exceeded", cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return analysis.NewError(analysis.CategoryUnconfigured, "analysis API key rejected", cause)
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "api key"):
		return analysis.NewError(analysis.CategoryUnconfigured, "analysis API key invalid", cause)
	case status >= 500:
		return analysis.NewError(analysis.CategoryTransport, fmt.Sprintf("upstream status %d", status), cause)
	default:
		return analysis.NewError(analysis.CategoryInvalidResponse, fmt.Sprintf("unexpected status %d", status), cause)
	}
}

package rembg

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/server/imagex"
)

// Instruction is the prompt sent alongside every image.
const Instruction = "Remove the background from this image. The subject should be perfectly preserved. The output must be a PNG with a transparent background."

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Remover is what the HTTP surface and the bulk processor depend on.
type Remover interface {
	RemoveBackground(ctx context.Context, image []byte, mimeType string) ([]byte, error)
}

// Config captures the runtime settings required to talk to Gemini.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout of 0 leaves the HTTP client without a deadline.
	Timeout time.Duration
}

// Client wraps the Gemini generateContent endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	maxInput   int
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMaxInputDimension shrinks uploads whose longest side exceeds n pixels.
func WithMaxInputDimension(n int) Option {
	return func(c *Client) {
		c.maxInput = n
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:   strings.TrimSpace(cfg.Model),
			Timeout: cfg.Timeout,
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *httpStatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini request: http %d: %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini request: http %d: %s", e.StatusCode, e.Message)
}

func (e *httpStatusError) Unwrap() error { return common.ErrorUpstream }

func upstreamf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{common.ErrorUpstream}, args...)...)
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// The API answers in camelCase; snake_case is accepted too.
type responsePart struct {
	Text        string          `json:"text"`
	InlineData  *responseInline `json:"inlineData"`
	InlineData2 *responseInline `json:"inline_data"`
}

type responseInline struct {
	MimeType  string `json:"mimeType"`
	MimeType2 string `json:"mime_type"`
	Data      string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []responsePart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type errorResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// RemoveBackground sends image to the model and returns the cut-out as PNG.
func (c *Client) RemoveBackground(ctx context.Context, image []byte, mimeType string) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, upstreamf("gemini api key is not configured")
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", common.ErrorValidation)
	}

	image, mimeType, err := c.prepareInput(image, mimeType)
	if err != nil {
		return nil, err
	}

	payload := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: Instruction},
				{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(image)}},
			},
		}},
		GenerationConfig: generationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	}

	data, err := c.send(ctx, payload)
	if err != nil {
		return nil, err
	}

	out, err := normalizePNG(data)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) prepareInput(image []byte, mimeType string) ([]byte, string, error) {
	if c.maxInput <= 0 {
		return image, mimeType, nil
	}
	img, err := imagex.Decode(image)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	b := img.Bounds()
	if max(b.Dx(), b.Dy()) <= c.maxInput {
		return image, mimeType, nil
	}
	small := imagex.ResizeWithinMax(imagex.ToNRGBA(img), c.maxInput)
	encoded, err := imagex.EncodePNG(small)
	if err != nil {
		return nil, "", err
	}
	return encoded, imagex.MimePNG, nil
}

func (c *Client) endpoint() (string, error) {
	return url.JoinPath(c.cfg.BaseURL, "models", c.cfg.Model+":generateContent")
}

func (c *Client) send(ctx context.Context, payload generateRequest) ([]byte, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, fmt.Errorf("gemini request: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("gemini request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observe(outcomeTransport)
		return nil, upstreamf("gemini request: http error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observe(outcomeTransport)
		return nil, upstreamf("gemini request: read body: %v", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		observe(outcomeStatus)
		return nil, statusError(resp.StatusCode, body)
	}

	data, err := extractImage(body)
	if err != nil {
		observe(outcomeSchema)
		return nil, err
	}
	observe(outcomeOK)
	return data, nil
}

func statusError(code int, body []byte) error {
	e := &httpStatusError{StatusCode: code, Message: strings.TrimSpace(string(body))}
	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
		e.Status = parsed.Error.Status
		e.Message = parsed.Error.Message
	}
	return e
}

func extractImage(body []byte) ([]byte, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, upstreamf("gemini response: decode: %v", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, upstreamf("gemini response: prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, upstreamf("gemini response: no candidates")
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			in := p.InlineData
			if in == nil {
				in = p.InlineData2
			}
			if in == nil {
				continue
			}
			if in.Data == "" {
				return nil, upstreamf("gemini response: empty image data")
			}
			data, err := base64.StdEncoding.DecodeString(in.Data)
			if err != nil {
				return nil, upstreamf("gemini response: bad image data: %v", err)
			}
			if len(data) == 0 {
				return nil, upstreamf("gemini response: empty image data")
			}
			return data, nil
		}
	}
	return nil, upstreamf("gemini response: no image part")
}

func normalizePNG(data []byte) ([]byte, error) {
	img, err := imagex.Decode(data)
	if err != nil {
		return nil, upstreamf("gemini response: %v", err)
	}
	out, err := imagex.EncodePNG(imagex.ToNRGBA(img))
	if err != nil {
		return nil, upstreamf("gemini response: %v", err)
	}
	return out, nil
}

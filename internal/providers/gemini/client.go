// Package gemini calls the Gemini generateContent API for spec and exterior
// image generation. Upstream HTTP failures surface as failure.HTTPError so
// the worker's retry classification sees the raw status.
package gemini

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

	"github.com/rs/zerolog"

	"drafted/internal/domain"
	"drafted/internal/failure"
	"drafted/internal/infra"
	"drafted/internal/providers"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the generateContent endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	textModel  string
	imageModel string
	httpClient *http.Client
	logger     *infra.Logger
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature        float64            `json:"temperature,omitempty"`
	ResponseMimeType   string             `json:"responseMimeType,omitempty"`
	ResponseJSONSchema json.RawMessage    `json:"responseJsonSchema,omitempty"`
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount int `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount,omitempty"`
	ImageTokenCount      int `json:"imageTokenCount,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates    []geminiCandidate   `json:"candidates"`
	UsageMetadata geminiUsageMetadata `json:"usageMetadata"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// houseSpecSchema is passed as responseJsonSchema. Kept minimal and strict.
const houseSpecSchema = `{
  "type": "object",
  "required": ["version", "style", "bedrooms", "bathrooms", "rooms"],
  "properties": {
    "version": {"type": "string"},
    "style": {"type": "string"},
    "bedrooms": {"type": "integer", "minimum": 1, "maximum": 10},
    "bathrooms": {"type": "integer", "minimum": 1, "maximum": 10},
    "rooms": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type", "name", "area_ft2"],
        "properties": {
          "id": {"type": "string"},
          "type": {"type": "string"},
          "name": {"type": "string"},
          "area_ft2": {"type": "number", "minimum": 20, "maximum": 2000}
        }
      }
    },
    "notes": {"type": "array", "items": {"type": "string"}}
  }
}`

// NewClient constructs a Gemini client with sane defaults. Callers may
// provide a nil HTTP client; a reusable one with a timeout is created.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	textModel := opts.TextModel
	if textModel == "" {
		textModel = "gemini-2.5-flash"
	}
	imageModel := opts.ImageModel
	if imageModel == "" {
		imageModel = "gemini-2.5-flash-image"
	}

	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		textModel:  textModel,
		imageModel: imageModel,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *Client) Name() string { return "gemini" }

// GenerateHouseSpec asks the text model for a schema-constrained JSON spec.
func (c *Client) GenerateHouseSpec(ctx context.Context, req providers.SpecRequest) (*providers.SpecResult, error) {
	system := "You are an architecture drafting assistant. " +
		"Return ONLY valid JSON matching the provided schema. " +
		"Use unique stable room ids (uuid strings) and realistic areas in ft^2."
	user := fmt.Sprintf(
		"User prompt: %s\nConstraints: bedrooms=%d, bathrooms=%d, style=%s\n"+
			"Include core public rooms (living, kitchen, dining) and the requested bedrooms/bathrooms.\n",
		req.Prompt, req.Bedrooms, req.Bathrooms, req.Style,
	)
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: system}}},
			{Role: "user", Parts: []geminiPart{{Text: user}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:        0.2,
			ResponseMimeType:   "application/json",
			ResponseJSONSchema: json.RawMessage(houseSpecSchema),
		},
	}

	data, meta, err := c.generateContent(ctx, c.textModel, payload)
	if err != nil {
		return nil, err
	}

	text := firstText(data)
	var spec domain.HouseSpec
	if err := json.Unmarshal([]byte(text), &spec); err != nil {
		return nil, fmt.Errorf("gemini returned non-JSON spec: %w: %.200s", err, text)
	}

	c.logger.Debug().
		Str("model", c.textModel).
		Str("request_id", meta.RequestID).
		Int("total_tokens", meta.TotalTokens).
		Msg("gemini: generated house spec")

	return &providers.SpecResult{Spec: &spec, Meta: meta}, nil
}

// GenerateExteriorImage asks the image model for a rendering. Returns
// (nil, nil) when the response carries no image payload.
func (c *Client) GenerateExteriorImage(ctx context.Context, req providers.ImageRequest) (*providers.ImageResult, error) {
	prompt := fmt.Sprintf(
		"Generate a photorealistic exterior rendering for a single-family home. "+
			"Style: %s. Brief: %s. No text or watermark. Daylight. 3/4 front view.",
		req.Style, req.Prompt,
	)
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &geminiImageConfig{AspectRatio: "16:9", ImageSize: "1K"},
		},
	}

	data, meta, err := c.generateContent(ctx, c.imageModel, payload)
	if err != nil {
		return nil, err
	}

	for _, candidate := range data.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode inline image: %w", err)
			}
			mime := part.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return &providers.ImageResult{Data: raw, MIMEType: mime, Meta: meta}, nil
		}
	}
	return nil, nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload geminiGenerateContentRequest) (*geminiGenerateContentResponse, providers.CallMeta, error) {
	meta := providers.CallMeta{Provider: "gemini", Model: model}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, meta, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, meta, fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, meta, fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	meta.LatencyMS = int(time.Since(start).Milliseconds())
	meta.RequestID = resp.Header.Get("x-goog-request-id")
	if meta.RequestID == "" {
		meta.RequestID = resp.Header.Get("x-request-id")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := ""
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, meta, &failure.HTTPError{Status: resp.StatusCode, Message: msg}
	}

	var data geminiGenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, meta, fmt.Errorf("decode gemini response: %w", err)
	}

	meta.InputTokens = data.UsageMetadata.PromptTokenCount
	meta.OutputTokens = data.UsageMetadata.CandidatesTokenCount
	meta.TotalTokens = data.UsageMetadata.TotalTokenCount
	meta.ImageTokens = data.UsageMetadata.ImageTokenCount
	return &data, meta, nil
}

func firstText(data *geminiGenerateContentResponse) string {
	for _, candidate := range data.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return "{}"
}

package engines

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/davidZakaria/cath-archives-sub000/internal/imaging"
	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

const (
	LLMVisionType         = "llmvision"
	llmVisionDefaultModel = "gpt-4o"

	// llmVisionMaxEdge bounds the longest image edge sent to the model.
	// Scanned pages at 300 DPI are far larger than vision models accept.
	llmVisionMaxEdge = 2048

	// llmVisionDefaultConfidence is assigned to lines the model returns
	// without a confidence of their own. Multimodal models are not
	// calibrated OCR engines; scoring treats this as a mid-high guess.
	llmVisionDefaultConfidence = 0.8

	// maxRepairAttempts limits self-repair loops when the model's output
	// fails JSON parsing or schema validation.
	maxRepairAttempts = 1
)

// llmVisionPrompt instructs the model to transcribe the page as strict JSON.
const llmVisionPrompt = `You are an OCR engine for scanned Arabic magazine and newspaper pages.
Transcribe ALL text visible in the image, reading right to left, top to bottom, column by column.

Return ONLY a JSON object with this exact shape, no markdown and no commentary:
{"lines": [{"text": "<one line of text>", "confidence": <0.0-1.0>}]}

Rules:
- One entry per printed line, in reading order.
- Keep the original Arabic text exactly as printed, including punctuation.
- confidence is your own certainty that the line is transcribed correctly.
- If part of the page is illegible, transcribe what you can and lower that line's confidence.`

// llmVisionSchema validates the model's structured output.
const llmVisionSchema = `{
	"type": "object",
	"required": ["lines"],
	"properties": {
		"lines": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["text"],
				"properties": {
					"text": {"type": "string"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1}
				}
			}
		}
	}
}`

var llmVisionCompiledSchema = jsonschema.MustCompileString("lines.json", llmVisionSchema)

// LLMVisionConfig holds configuration for the multimodal LLM engine.
type LLMVisionConfig struct {
	APIKey     string
	BaseURL    string // optional OpenAI-compatible endpoint (gateways, tests)
	Model      string
	Timeout    time.Duration
	RateLimit  float64 // Requests per second (default: 1.0)
	MaxRetries int     // SDK transport retries
	HTTPClient *http.Client
}

// LLMVision implements Adapter by asking a multimodal chat model to
// transcribe the page. Geometry is synthesized as stacked full-width lines
// because chat models return no bounding boxes.
type LLMVision struct {
	apiKey    string
	baseURL   string
	model     string
	rateLimit float64
	client    openai.Client
}

// NewLLMVision creates a new multimodal LLM engine.
func NewLLMVision(cfg LLMVisionConfig) *LLMVision {
	if cfg.Model == "" {
		cfg.Model = llmVisionDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1.0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &LLMVision{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		rateLimit: cfg.RateLimit,
		client:    openai.NewClient(opts...),
	}
}

// Name returns the engine identifier.
func (c *LLMVision) Name() string {
	return LLMVisionType
}

// RequestsPerSecond returns the configured rate limit.
func (c *LLMVision) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *LLMVision) MaxRetries() int {
	return 2
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *LLMVision) RetryDelayBase() time.Duration {
	return 5 * time.Second
}

// Run transcribes a page image via the chat completions API.
func (c *LLMVision) Run(ctx context.Context, req ocr.PageRequest) ocr.EngineResult {
	start := time.Now()

	img, err := imaging.Decode(req.Image)
	if err != nil {
		return ocr.ErrorResult(c.Name(), fmt.Sprintf("decode image: %v", err), time.Since(start))
	}
	pageW := img.Bounds().Dx()
	pageH := img.Bounds().Dy()

	payload, err := imaging.EncodePNG(imaging.Fit(img, llmVisionMaxEdge, llmVisionMaxEdge))
	if err != nil {
		return ocr.ErrorResult(c.Name(), fmt.Sprintf("encode image: %v", err), time.Since(start))
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(llmVisionPrompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL,
			}),
		}),
	}

	var lines []llmVisionLine
	for attempt := 0; ; attempt++ {
		content, err := c.complete(ctx, messages)
		if err != nil {
			return ocr.ErrorResult(c.Name(), err.Error(), time.Since(start))
		}

		lines, err = parseVisionLines(content)
		if err == nil {
			break
		}
		if attempt >= maxRepairAttempts {
			return ocr.ErrorResult(c.Name(), fmt.Sprintf("structured output: %v", err), time.Since(start))
		}
		// Ask the model to fix its own output. The image is not resent;
		// the previous transcription plus the validation issue is enough.
		messages = append(messages,
			openai.AssistantMessage(content),
			openai.UserMessage(visionRepairPrompt(content, err)),
		)
	}

	return resultFromLines(c.Name(), lines, pageW, pageH, start)
}

// complete runs one chat completion and returns the raw message content.
func (c *LLMVision) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(0),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion failed (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type llmVisionLine struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type llmVisionLines struct {
	Lines []llmVisionLine `json:"lines"`
}

// parseVisionLines extracts and validates the JSON line list from model
// output, tolerating markdown fences and surrounding prose.
func parseVisionLines(content string) ([]llmVisionLine, error) {
	raw := extractJSONObject(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := llmVisionCompiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("output does not match schema: %w", err)
	}

	var parsed llmVisionLines
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return parsed.Lines, nil
}

// extractJSONObject returns the outermost {...} span of the content, after
// stripping a leading markdown code fence if present.
func extractJSONObject(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		lines := strings.Split(trimmed, "\n")
		if len(lines) >= 2 {
			lines = lines[1:]
			if strings.TrimSpace(lines[len(lines)-1]) == "```" {
				lines = lines[:len(lines)-1]
			}
			trimmed = strings.TrimSpace(strings.Join(lines, "\n"))
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end < start {
		return ""
	}
	return trimmed[start : end+1]
}

func visionRepairPrompt(lastOutput string, issue error) string {
	lastOutput = strings.TrimSpace(lastOutput)
	if len(lastOutput) > 8000 {
		lastOutput = lastOutput[:8000] + "\n...[truncated]"
	}
	return fmt.Sprintf(`Your previous output could not be used:
%v

Return ONLY valid JSON matching {"lines": [{"text": "...", "confidence": 0.0-1.0}]} with the same transcription. No markdown, no commentary.`, issue)
}

// resultFromLines synthesizes fragment geometry for the transcribed lines.
// Each line becomes a full-width fragment; lines are stacked top to bottom
// over the page height so reading order and column joining still work.
func resultFromLines(engineID string, lines []llmVisionLine, pageW, pageH int, start time.Time) ocr.EngineResult {
	kept := make([]llmVisionLine, 0, len(lines))
	for _, ln := range lines {
		if strings.TrimSpace(ln.Text) != "" {
			kept = append(kept, ln)
		}
	}

	result := ocr.EngineResult{
		EngineID:         engineID,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	if len(kept) == 0 {
		return result
	}

	lineH := pageH / len(kept)
	if lineH < 1 {
		lineH = 1
	}

	texts := make([]string, 0, len(kept))
	frags := make([]ocr.TextFragment, 0, len(kept))
	for i, ln := range kept {
		conf := llmVisionDefaultConfidence
		if ln.Confidence != nil {
			conf = clamp01(*ln.Confidence)
		}
		texts = append(texts, ln.Text)
		frags = append(frags, ocr.TextFragment{
			Text:       ln.Text,
			Confidence: conf,
			BoundingBox: ocr.BoundingBox{
				X:      0,
				Y:      i * lineH,
				Width:  pageW,
				Height: lineH,
			},
		})
	}

	result.FullText = strings.Join(texts, "\n")
	result.Fragments = frags
	result.OverallConfidence = MeanConfidence(frags)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Verify interface
var _ Adapter = (*LLMVision)(nil)

package engines

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

const (
	GoogleVisionType    = "gvision"
	GoogleVisionBaseURL = "https://vision.googleapis.com"

	// DOCUMENT_TEXT_DETECTION is tuned for dense text on scanned pages and
	// returns block/paragraph/word geometry, unlike plain TEXT_DETECTION.
	googleVisionFeature = "DOCUMENT_TEXT_DETECTION"
)

// GoogleVisionConfig holds configuration for the Google Cloud Vision engine.
type GoogleVisionConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // Requests per second (default: 10.0)
	HTTPClient *http.Client
}

// GoogleVision implements Adapter using the Cloud Vision images:annotate
// REST endpoint with API key authentication.
type GoogleVision struct {
	apiKey    string
	baseURL   string
	rateLimit float64
	client    *http.Client
}

// NewGoogleVision creates a new Google Cloud Vision engine.
func NewGoogleVision(cfg GoogleVisionConfig) *GoogleVision {
	if cfg.BaseURL == "" {
		cfg.BaseURL = GoogleVisionBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10.0
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &GoogleVision{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		rateLimit: cfg.RateLimit,
		client:    client,
	}
}

// Name returns the engine identifier.
func (c *GoogleVision) Name() string {
	return GoogleVisionType
}

// RequestsPerSecond returns the rate limit for the Vision API.
func (c *GoogleVision) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *GoogleVision) MaxRetries() int {
	return 3
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *GoogleVision) RetryDelayBase() time.Duration {
	return 2 * time.Second
}

// Run extracts text from a page image using DOCUMENT_TEXT_DETECTION.
// A page with no recognizable text is a valid empty result, not a failure;
// transport and API errors are reported in the result's Error field.
func (c *GoogleVision) Run(ctx context.Context, req ocr.PageRequest) ocr.EngineResult {
	start := time.Now()

	annotate := gvisionRequest{
		Requests: []gvisionAnnotateRequest{{
			Image:    gvisionImage{Content: base64.StdEncoding.EncodeToString(req.Image)},
			Features: []gvisionFeature{{Type: googleVisionFeature}},
		}},
	}
	if len(req.LanguageHints) > 0 {
		annotate.Requests[0].ImageContext = &gvisionImageContext{LanguageHints: req.LanguageHints}
	}

	resp, err := c.doRequest(ctx, annotate)
	if err != nil {
		return ocr.ErrorResult(c.Name(), err.Error(), time.Since(start))
	}

	if len(resp.Responses) == 0 {
		return ocr.ErrorResult(c.Name(), "empty annotate response", time.Since(start))
	}
	anno := resp.Responses[0]
	if anno.Error != nil && anno.Error.Message != "" {
		msg := fmt.Sprintf("vision API error (code %d): %s", anno.Error.Code, anno.Error.Message)
		return ocr.ErrorResult(c.Name(), msg, time.Since(start))
	}

	result := ocr.EngineResult{
		EngineID:         c.Name(),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	if anno.FullTextAnnotation == nil {
		// No text on the page. Deliberately not an error: downstream scoring
		// handles empty results.
		return result
	}

	result.FullText = strings.TrimSpace(anno.FullTextAnnotation.Text)
	result.Fragments = paragraphFragments(anno.FullTextAnnotation)
	result.OverallConfidence = MeanConfidence(result.Fragments)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result
}

// doRequest makes an HTTP request to the Vision API.
func (c *GoogleVision) doRequest(ctx context.Context, body gvisionRequest) (*gvisionResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/v1/images:annotate?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp gvisionErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("vision API error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("vision API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var annResp gvisionResponse
	if err := json.Unmarshal(respBody, &annResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &annResp, nil
}

// paragraphFragments flattens the page/block/paragraph hierarchy into one
// text fragment per paragraph, assembling text from symbols with their
// detected breaks so line structure survives.
func paragraphFragments(full *gvisionTextAnnotation) []ocr.TextFragment {
	var frags []ocr.TextFragment
	for _, page := range full.Pages {
		for _, block := range page.Blocks {
			for _, para := range block.Paragraphs {
				frag := paragraphFragment(para)
				if strings.TrimSpace(frag.Text) == "" {
					continue
				}
				frags = append(frags, frag)
			}
		}
	}
	return frags
}

func paragraphFragment(para gvisionParagraph) ocr.TextFragment {
	var b strings.Builder
	var confSum float64
	var confCount int
	for _, word := range para.Words {
		if word.Confidence > 0 {
			confSum += word.Confidence
			confCount++
		}
		for _, sym := range word.Symbols {
			b.WriteString(sym.Text)
			if sym.Property != nil && sym.Property.DetectedBreak != nil {
				switch sym.Property.DetectedBreak.Type {
				case "SPACE", "SURE_SPACE":
					b.WriteByte(' ')
				case "EOL_SURE_SPACE", "LINE_BREAK":
					b.WriteByte('\n')
				case "HYPHEN":
					b.WriteString("-\n")
				}
			}
		}
	}

	conf := para.Confidence
	if conf == 0 && confCount > 0 {
		conf = confSum / float64(confCount)
	}

	return ocr.TextFragment{
		Text:        strings.TrimRight(b.String(), "\n "),
		Confidence:  conf,
		BoundingBox: boxFromVertices(para.BoundingBox),
	}
}

// boxFromVertices converts a Vision bounding polygon to an axis-aligned box.
// Vertices omit zero coordinates on the wire, which the int zero value
// already handles.
func boxFromVertices(poly *gvisionBoundingPoly) ocr.BoundingBox {
	if poly == nil || len(poly.Vertices) == 0 {
		return ocr.BoundingBox{}
	}
	minX, minY := poly.Vertices[0].X, poly.Vertices[0].Y
	maxX, maxY := minX, minY
	for _, v := range poly.Vertices[1:] {
		if v.X < minX {
			minX = v.X
		}
		if v.Y < minY {
			minY = v.Y
		}
		if v.X > maxX {
			maxX = v.X
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	return ocr.BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Cloud Vision API types

type gvisionRequest struct {
	Requests []gvisionAnnotateRequest `json:"requests"`
}

type gvisionAnnotateRequest struct {
	Image        gvisionImage         `json:"image"`
	Features     []gvisionFeature     `json:"features"`
	ImageContext *gvisionImageContext `json:"imageContext,omitempty"`
}

type gvisionImage struct {
	Content string `json:"content"` // base64-encoded image bytes
}

type gvisionFeature struct {
	Type string `json:"type"`
}

type gvisionImageContext struct {
	LanguageHints []string `json:"languageHints,omitempty"`
}

type gvisionResponse struct {
	Responses []gvisionAnnotateResponse `json:"responses"`
}

type gvisionAnnotateResponse struct {
	FullTextAnnotation *gvisionTextAnnotation `json:"fullTextAnnotation,omitempty"`
	Error              *gvisionStatus         `json:"error,omitempty"`
}

type gvisionStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type gvisionTextAnnotation struct {
	Text  string        `json:"text"`
	Pages []gvisionPage `json:"pages"`
}

type gvisionPage struct {
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Blocks []gvisionBlock `json:"blocks"`
}

type gvisionBlock struct {
	BlockType  string             `json:"blockType"`
	Confidence float64            `json:"confidence"`
	Paragraphs []gvisionParagraph `json:"paragraphs"`
}

type gvisionParagraph struct {
	BoundingBox *gvisionBoundingPoly `json:"boundingBox"`
	Confidence  float64              `json:"confidence"`
	Words       []gvisionWord        `json:"words"`
}

type gvisionWord struct {
	BoundingBox *gvisionBoundingPoly `json:"boundingBox"`
	Confidence  float64              `json:"confidence"`
	Symbols     []gvisionSymbol      `json:"symbols"`
}

type gvisionSymbol struct {
	Text       string                 `json:"text"`
	Confidence float64                `json:"confidence"`
	Property   *gvisionSymbolProperty `json:"property,omitempty"`
}

type gvisionSymbolProperty struct {
	DetectedBreak *gvisionBreak `json:"detectedBreak,omitempty"`
}

type gvisionBreak struct {
	Type string `json:"type"`
}

type gvisionBoundingPoly struct {
	Vertices []gvisionVertex `json:"vertices"`
}

type gvisionVertex struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type gvisionErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Verify interface
var _ Adapter = (*GoogleVision)(nil)

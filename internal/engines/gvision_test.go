package engines

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

// gvisionWordFixture builds a word whose symbols spell out text with the
// given trailing break.
func gvisionWordFixture(text string, conf float64, box *gvisionBoundingPoly, breakType string) gvisionWord {
	runes := []rune(text)
	symbols := make([]gvisionSymbol, len(runes))
	for i, r := range runes {
		symbols[i] = gvisionSymbol{Text: string(r), Confidence: conf}
	}
	if breakType != "" && len(symbols) > 0 {
		symbols[len(symbols)-1].Property = &gvisionSymbolProperty{
			DetectedBreak: &gvisionBreak{Type: breakType},
		}
	}
	return gvisionWord{BoundingBox: box, Confidence: conf, Symbols: symbols}
}

func poly(x, y, w, h int) *gvisionBoundingPoly {
	return &gvisionBoundingPoly{Vertices: []gvisionVertex{
		{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h},
	}}
}

func TestGoogleVisionRun(t *testing.T) {
	t.Run("successful annotation", func(t *testing.T) {
		var gotReq gvisionRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/images:annotate" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != "POST" {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if key := r.URL.Query().Get("key"); key != "test-key" {
				t.Errorf("unexpected api key: %s", key)
			}
			json.NewDecoder(r.Body).Decode(&gotReq)

			resp := gvisionResponse{
				Responses: []gvisionAnnotateResponse{{
					FullTextAnnotation: &gvisionTextAnnotation{
						Text: "العنوان\nنص المقال",
						Pages: []gvisionPage{{
							Width:  1000,
							Height: 1400,
							Blocks: []gvisionBlock{{
								BlockType: "TEXT",
								Paragraphs: []gvisionParagraph{
									{
										BoundingBox: poly(100, 50, 800, 60),
										Confidence:  0.95,
										Words: []gvisionWord{
											gvisionWordFixture("العنوان", 0.95, poly(100, 50, 800, 60), "LINE_BREAK"),
										},
									},
									{
										BoundingBox: poly(100, 150, 800, 30),
										Confidence:  0.85,
										Words: []gvisionWord{
											gvisionWordFixture("نص", 0.85, poly(700, 150, 100, 30), "SPACE"),
											gvisionWordFixture("المقال", 0.85, poly(550, 150, 140, 30), "LINE_BREAK"),
										},
									},
								},
							}},
						}},
					},
				}},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		engine := NewGoogleVision(GoogleVisionConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
		})

		result := engine.Run(context.Background(), ocr.PageRequest{
			Image:         []byte("fake image data"),
			LanguageHints: []string{"ar"},
			PageNumber:    1,
		})

		if result.Failed() {
			t.Fatalf("unexpected failure: %s", result.Error)
		}
		if result.EngineID != "gvision" {
			t.Errorf("EngineID = %q, want gvision", result.EngineID)
		}
		if result.FullText != "العنوان\nنص المقال" {
			t.Errorf("unexpected FullText: %q", result.FullText)
		}
		if len(result.Fragments) != 2 {
			t.Fatalf("got %d fragments, want 2", len(result.Fragments))
		}
		if result.Fragments[0].Text != "العنوان" {
			t.Errorf("fragment 0 text = %q", result.Fragments[0].Text)
		}
		if result.Fragments[1].Text != "نص المقال" {
			t.Errorf("fragment 1 text = %q, want %q", result.Fragments[1].Text, "نص المقال")
		}

		box := result.Fragments[0].BoundingBox
		if box.X != 100 || box.Y != 50 || box.Width != 800 || box.Height != 60 {
			t.Errorf("fragment 0 box = %+v", box)
		}
		if result.Fragments[0].Confidence != 0.95 {
			t.Errorf("fragment 0 confidence = %f, want 0.95", result.Fragments[0].Confidence)
		}
		if result.OverallConfidence <= 0.8 || result.OverallConfidence >= 1.0 {
			t.Errorf("OverallConfidence = %f, want mean of 0.95 and 0.85", result.OverallConfidence)
		}

		// Request must carry the feature and language hints.
		if len(gotReq.Requests) != 1 {
			t.Fatalf("got %d annotate requests, want 1", len(gotReq.Requests))
		}
		if gotReq.Requests[0].Features[0].Type != "DOCUMENT_TEXT_DETECTION" {
			t.Errorf("feature = %q", gotReq.Requests[0].Features[0].Type)
		}
		if gotReq.Requests[0].ImageContext == nil || gotReq.Requests[0].ImageContext.LanguageHints[0] != "ar" {
			t.Error("language hints not forwarded")
		}
		if gotReq.Requests[0].Image.Content == "" {
			t.Error("image content missing from request")
		}
	})

	t.Run("no text on page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(gvisionResponse{
				Responses: []gvisionAnnotateResponse{{}},
			})
		}))
		defer server.Close()

		engine := NewGoogleVision(GoogleVisionConfig{APIKey: "k", BaseURL: server.URL})
		result := engine.Run(context.Background(), ocr.PageRequest{Image: []byte("fake")})

		if result.Failed() {
			t.Fatalf("blank page should not be a failure: %s", result.Error)
		}
		if result.FullText != "" || len(result.Fragments) != 0 {
			t.Error("expected empty result for blank page")
		}
	})

	t.Run("per-image error in response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(gvisionResponse{
				Responses: []gvisionAnnotateResponse{{
					Error: &gvisionStatus{Code: 3, Message: "Bad image data"},
				}},
			})
		}))
		defer server.Close()

		engine := NewGoogleVision(GoogleVisionConfig{APIKey: "k", BaseURL: server.URL})
		result := engine.Run(context.Background(), ocr.PageRequest{Image: []byte("fake")})

		if !result.Failed() {
			t.Fatal("expected failure")
		}
		if !strings.Contains(result.Error, "Bad image data") {
			t.Errorf("Error = %q, want API message included", result.Error)
		}
	})

	t.Run("HTTP error response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{
					"code":    403,
					"message": "API key invalid",
					"status":  "PERMISSION_DENIED",
				},
			})
		}))
		defer server.Close()

		engine := NewGoogleVision(GoogleVisionConfig{APIKey: "bad", BaseURL: server.URL})
		result := engine.Run(context.Background(), ocr.PageRequest{Image: []byte("fake")})

		if !result.Failed() {
			t.Fatal("expected failure")
		}
		if !strings.Contains(result.Error, "API key invalid") {
			t.Errorf("Error = %q, want API message included", result.Error)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		engine := NewGoogleVision(GoogleVisionConfig{APIKey: "k", BaseURL: server.URL})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := engine.Run(ctx, ocr.PageRequest{Image: []byte("fake")})
		if !result.Failed() {
			t.Error("expected failure from cancelled context")
		}
	})
}

func TestBoxFromVertices(t *testing.T) {
	tests := []struct {
		name string
		poly *gvisionBoundingPoly
		want ocr.BoundingBox
	}{
		{"nil polygon", nil, ocr.BoundingBox{}},
		{"empty polygon", &gvisionBoundingPoly{}, ocr.BoundingBox{}},
		{
			"rectangle",
			poly(10, 20, 100, 50),
			ocr.BoundingBox{X: 10, Y: 20, Width: 100, Height: 50},
		},
		{
			// Skewed scans produce non-axis-aligned quads.
			"skewed quad",
			&gvisionBoundingPoly{Vertices: []gvisionVertex{
				{X: 12, Y: 20}, {X: 110, Y: 24}, {X: 108, Y: 70}, {X: 10, Y: 66},
			}},
			ocr.BoundingBox{X: 10, Y: 20, Width: 100, Height: 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := boxFromVertices(tt.poly); got != tt.want {
				t.Errorf("boxFromVertices() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParagraphFragmentBreaks(t *testing.T) {
	para := gvisionParagraph{
		BoundingBox: poly(0, 0, 100, 40),
		Words: []gvisionWord{
			gvisionWordFixture("اله", 0.9, nil, "HYPHEN"),
			gvisionWordFixture("لال", 0.9, nil, "LINE_BREAK"),
		},
	}

	frag := paragraphFragment(para)
	if frag.Text != "اله-\nلال" {
		t.Errorf("text = %q, want hyphen break preserved", frag.Text)
	}
	// Paragraph confidence missing: falls back to word average.
	if frag.Confidence != 0.9 {
		t.Errorf("confidence = %f, want 0.9", frag.Confidence)
	}
}

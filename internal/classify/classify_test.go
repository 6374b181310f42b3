package classify

import (
	"math"
	"strings"
	"testing"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

func sized(text string, y, height int) ocr.TextFragment {
	return ocr.TextFragment{
		Text:        text,
		Confidence:  0.9,
		BoundingBox: ocr.BoundingBox{X: 50, Y: y, Width: 400, Height: height},
	}
}

func TestEstimateFontSize(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		height int
		want   float64
	}{
		{"single line", "عنوان", 40, 30},
		{"two lines", "سطر\nسطر", 80, 30},
		{"rounding", "نص", 43, 32}, // 0.75*43 = 32.25
		{"empty text counts one line", "", 20, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := sized(tt.text, 0, tt.height)
			if got := EstimateFontSize(f); got != tt.want {
				t.Errorf("EstimateFontSize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyRoles(t *testing.T) {
	// Three body fragments of size 40 anchor the average; the probe
	// fragment's height and word count steer its ratio and role.
	// With probe size p: avg = (120+p)/4, ratio = 4p/(120+p).
	tests := []struct {
		name   string
		height int // probe height, size = 0.75*height
		words  int
		want   ocr.Role
	}{
		{"large short fragment is title", 160, 4, ocr.RoleTitle},          // size 120, ratio 2.0
		{"large medium fragment is subtitle", 107, 12, ocr.RoleSubtitle},  // size 80, ratio 1.6
		{"slightly large fragment is heading", 80, 18, ocr.RoleHeading},   // size 60, ratio 1.33
		{"small fragment is caption", 27, 6, ocr.RoleCaption},             // size 20, ratio 0.57
		{"regular fragment is body", 53, 30, ocr.RoleBody},                 // size 40, ratio 1.0
		{"large but wordy fragment is not a title", 160, 40, ocr.RoleBody}, // ratio 2.0 but 40 words
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := strings.TrimSpace(strings.Repeat("كلمة ", tt.words))
			frags := []ocr.TextFragment{
				sized(words, 100, tt.height),
				sized("نص الجسم الأول هنا", 300, 53),
				sized("نص الجسم الثاني هنا", 500, 53),
				sized("نص الجسم الثالث هنا", 700, 53),
			}

			res := Classify(frags)

			if got := res.Fragments[0].Role; got != tt.want {
				t.Errorf("role = %q, want %q (size %.0f, avg %.1f)",
					got, tt.want, res.Fragments[0].EstimatedFontSize, res.AverageFontSize)
			}
		})
	}
}

func TestClassifyTitleScenario(t *testing.T) {
	// A four-word fragment at the very top with twice the average font
	// size must classify as title and be reported as a detected title.
	title := "عنوان المجلة الرئيسي هنا"
	frags := []ocr.TextFragment{
		sized(title, 10, 160),                  // size 120
		sized("فقرة أولى من النص", 300, 53),    // size 40
		sized("فقرة ثانية من النص", 600, 53),   // size 40
		sized("فقرة ثالثة من النص", 900, 53),   // size 40
	}

	res := Classify(frags)

	if got := res.Fragments[0].Role; got != ocr.RoleTitle {
		t.Fatalf("role = %q, want title", got)
	}
	if len(res.DetectedTitles) != 1 || res.DetectedTitles[0] != title {
		t.Errorf("DetectedTitles = %v, want [%q]", res.DetectedTitles, title)
	}
}

func TestClassifyMidPageTitleNotDetected(t *testing.T) {
	// Display type half way down the page keeps its title role but stays
	// out of the page-title list.
	frags := []ocr.TextFragment{
		sized("نص عادي في الأعلى", 10, 53),
		sized("عنوان في المنتصف", 500, 160),
		sized("نص عادي في الأسفل", 700, 53),
		sized("نص عادي في الأسفل", 990, 53),
	}

	res := Classify(frags)

	if got := res.Fragments[1].Role; got != ocr.RoleTitle {
		t.Fatalf("role = %q, want title", got)
	}
	if len(res.DetectedTitles) != 0 {
		t.Errorf("DetectedTitles = %v, want empty", res.DetectedTitles)
	}
}

func TestClassifyDetectedTitlesCap(t *testing.T) {
	// Seven qualifying headlines in the top band; only five reported.
	frags := make([]ocr.TextFragment, 0, 27)
	for i := 0; i < 7; i++ {
		frags = append(frags, sized("عنوان", 10+i*5, 160))
	}
	for i := 0; i < 20; i++ {
		frags = append(frags, sized("نص الجسم للتعبئة", 2000+i*50, 53))
	}

	res := Classify(frags)

	if len(res.DetectedTitles) != maxDetectedTitles {
		t.Errorf("len(DetectedTitles) = %d, want %d", len(res.DetectedTitles), maxDetectedTitles)
	}
}

func TestClassifyEmptyPage(t *testing.T) {
	res := Classify(nil)

	if res.AverageFontSize != DefaultFontSize {
		t.Errorf("AverageFontSize = %v, want %v", res.AverageFontSize, DefaultFontSize)
	}
	if len(res.Fragments) != 0 || len(res.DetectedTitles) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestClassifyDoesNotMutateInput(t *testing.T) {
	in := []ocr.TextFragment{sized("نص", 100, 53)}

	_ = Classify(in)

	if in[0].Role != "" || in[0].EstimatedFontSize != 0 {
		t.Errorf("input fragment modified: %+v", in[0])
	}
}

func TestWordAndLineCount(t *testing.T) {
	if got := WordCount("كلمة أولى ثانية"); got != 3 {
		t.Errorf("WordCount = %d, want 3", got)
	}
	if got := WordCount("   "); got != 0 {
		t.Errorf("WordCount(blank) = %d, want 0", got)
	}
	if got := LineCount("سطر\nسطر\nسطر"); got != 3 {
		t.Errorf("LineCount = %d, want 3", got)
	}
	if got := LineCount("سطر"); got != 1 {
		t.Errorf("LineCount = %d, want 1", got)
	}
}

func TestClassifyAverageFontSize(t *testing.T) {
	frags := []ocr.TextFragment{
		sized("أ", 0, 40), // size 30
		sized("ب", 100, 80), // size 60
	}

	res := Classify(frags)

	if want := 45.0; math.Abs(res.AverageFontSize-want) > 1e-9 {
		t.Errorf("AverageFontSize = %v, want %v", res.AverageFontSize, want)
	}
}

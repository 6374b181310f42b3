package layout

import (
	"image"
	"testing"

	"github.com/davidZakaria/cath-archives-sub000/internal/testutil"
)

func TestSplitWidthsSumToPageWidth(t *testing.T) {
	tests := []struct {
		name  string
		width int
		count int
	}{
		{"even split", 1000, 2},
		{"odd width two columns", 1001, 2},
		{"three columns with remainder", 1000, 3},
		{"four columns with remainder", 1003, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := testutil.SolidPage(tt.width, 600, testutil.PaperShade)
			cols, err := Split(page, tt.count)
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}
			if len(cols) != tt.count {
				t.Fatalf("len(cols) = %d, want %d", len(cols), tt.count)
			}

			sum := 0
			for _, c := range cols {
				sum += c.Width
				if c.Image.Bounds().Dx() != c.Width {
					t.Errorf("col %d image width = %d, want %d", c.Index, c.Image.Bounds().Dx(), c.Width)
				}
			}
			if sum != tt.width {
				t.Errorf("width sum = %d, want %d", sum, tt.width)
			}

			// The remainder always lands on the rightmost strip.
			base := tt.width / tt.count
			if cols[0].Width != base+tt.width%tt.count {
				t.Errorf("rightmost width = %d, want %d", cols[0].Width, base+tt.width%tt.count)
			}
			for _, c := range cols[1:] {
				if c.Width != base {
					t.Errorf("col %d width = %d, want %d", c.Index, c.Width, base)
				}
			}
		})
	}
}

func TestSplitOrdersRightToLeft(t *testing.T) {
	// Right half white, left half dark: the rightmost strip (index 0) must
	// be the white one.
	page := testutil.Page(800, 400, testutil.PaperShade,
		testutil.Band{X: 0, Y: 0, W: 400, H: 400, Shade: testutil.InkShade},
	)

	cols, err := Split(page, 2)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	if cols[0].OffsetX != 400 {
		t.Errorf("cols[0].OffsetX = %d, want 400", cols[0].OffsetX)
	}
	if cols[1].OffsetX != 0 {
		t.Errorf("cols[1].OffsetX = %d, want 0", cols[1].OffsetX)
	}

	sampleShade := func(img image.Image) uint32 {
		r, _, _, _ := img.At(img.Bounds().Min.X+10, img.Bounds().Min.Y+10).RGBA()
		return r >> 8
	}
	if got := sampleShade(cols[0].Image); got != uint32(testutil.PaperShade) {
		t.Errorf("rightmost strip shade = %d, want %d", got, testutil.PaperShade)
	}
	if got := sampleShade(cols[1].Image); got != uint32(testutil.InkShade) {
		t.Errorf("leftmost strip shade = %d, want %d", got, testutil.InkShade)
	}
}

func TestSplitOffsetsTranslateBack(t *testing.T) {
	page := testutil.SolidPage(901, 300, testutil.PaperShade)

	cols, err := Split(page, 3)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	// Walking strips leftmost-to-rightmost must tile the page exactly.
	covered := 0
	for i := len(cols) - 1; i >= 0; i-- {
		if cols[i].OffsetX != covered {
			t.Errorf("col %d OffsetX = %d, want %d", cols[i].Index, cols[i].OffsetX, covered)
		}
		covered += cols[i].Width
	}
	if covered != 901 {
		t.Errorf("covered = %d, want 901", covered)
	}
}

func TestSplitRejectsBadInput(t *testing.T) {
	page := testutil.SolidPage(100, 100, testutil.PaperShade)

	if _, err := Split(page, 1); err == nil {
		t.Errorf("Split(count=1) error = nil, want error")
	}
	tiny := testutil.SolidPage(3, 100, testutil.PaperShade)
	if _, err := Split(tiny, 4); err == nil {
		t.Errorf("Split(width<count) error = nil, want error")
	}
}

func TestSplitScenarioTwoColumnPage(t *testing.T) {
	// End to end with the detector: a page with a clear 3% gap detects two
	// columns and splits into two buffers covering the full width.
	page := testutil.TwoColumnPage(1000, 1400, 0.03)
	d := NewDetector(DetectorConfig{})

	det := d.Detect(page, 0)
	if det.EstimatedColumns != 2 {
		t.Fatalf("EstimatedColumns = %d, want 2", det.EstimatedColumns)
	}

	cols, err := Split(page, det.EstimatedColumns)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(cols) != 2 {
		t.Fatalf("len(cols) = %d, want 2", len(cols))
	}
	sum := cols[0].Width + cols[1].Width
	if diff := sum - 1000; diff < -1 || diff > 1 {
		t.Errorf("width sum = %d, want 1000 +/- 1", sum)
	}
}

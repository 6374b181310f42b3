// Package layout analyzes scanned pages for multi-column structure and
// splits them into per-column strips for OCR. Detection works on the
// grayscale raster only; it needs no text, so it runs before any engine.
package layout

import (
	"image"
	"math"
	"sort"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

const (
	defaultSampleStrips        = 5
	defaultBrightnessThreshold = 200
	defaultMinGapWidthFrac     = 0.015
	defaultClusterWidthFrac    = 0.02
	defaultStripSupportFrac    = 0.6

	// Columns below this detection confidence are ignored and the page is
	// treated as single-column.
	minColumnConfidence = 0.35
)

// DetectorConfig tunes gap detection. Zero values fall back to defaults
// calibrated for 300 DPI magazine scans.
type DetectorConfig struct {
	SampleStrips        int     // horizontal strips sampled across the page height
	BrightnessThreshold uint8   // pixel values above this count as background
	MinGapWidthFrac     float64 // minimum gap width as a fraction of page width
	ClusterWidthFrac    float64 // max center spread within one gap cluster, as a fraction of page width
	StripSupportFrac    float64 // fraction of strips a gap must appear in to be valid
}

func (c DetectorConfig) withDefaults() DetectorConfig {
	if c.SampleStrips <= 0 {
		c.SampleStrips = defaultSampleStrips
	}
	if c.BrightnessThreshold == 0 {
		c.BrightnessThreshold = defaultBrightnessThreshold
	}
	if c.MinGapWidthFrac <= 0 {
		c.MinGapWidthFrac = defaultMinGapWidthFrac
	}
	if c.ClusterWidthFrac <= 0 {
		c.ClusterWidthFrac = defaultClusterWidthFrac
	}
	if c.StripSupportFrac <= 0 {
		c.StripSupportFrac = defaultStripSupportFrac
	}
	return c
}

// Detector estimates how many printed text columns a page has by looking
// for vertical whitespace gaps that persist down the page. The result is a
// pure function of the input raster and the configuration.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// gapRun is one qualifying bright run found in a single sampled strip.
type gapRun struct {
	strip  int
	center int
}

// Detect scans the grayscale page for column gaps. A manual column count
// (> 0) short-circuits detection entirely and is reported at full
// confidence.
func (d *Detector) Detect(g *image.Gray, manualColumns int) ocr.ColumnDetectionResult {
	if manualColumns > 0 {
		return ocr.ColumnDetectionResult{
			HasColumns:       manualColumns > 1,
			EstimatedColumns: manualColumns,
			Confidence:       1.0,
		}
	}

	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return ocr.ColumnDetectionResult{EstimatedColumns: 1}
	}

	runs := d.collectGapRuns(g)
	tol := int(float64(w) * d.cfg.ClusterWidthFrac)
	clusters := clusterRuns(runs, tol)

	needed := int(math.Ceil(d.cfg.StripSupportFrac * float64(d.cfg.SampleStrips)))
	var centers []int
	bestSupport := 0
	for _, cl := range clusters {
		if cl.support() >= needed {
			centers = append(centers, cl.center())
			if cl.support() > bestSupport {
				bestSupport = cl.support()
			}
		}
	}

	if len(centers) == 0 {
		return d.aspectFallback(w, h)
	}

	sort.Ints(centers)
	conf := 0.5 + 0.45*float64(bestSupport)/float64(d.cfg.SampleStrips)
	if conf > 0.95 {
		conf = 0.95
	}

	res := ocr.ColumnDetectionResult{
		EstimatedColumns: len(centers) + 1,
		Confidence:       conf,
		GapCenters:       centers,
	}
	res.HasColumns = res.EstimatedColumns > 1 && res.Confidence > minColumnConfidence
	if !res.HasColumns {
		res.EstimatedColumns = 1
		res.GapCenters = nil
	}
	return res
}

// collectGapRuns samples evenly-spaced horizontal strips and records every
// bright run wide enough to be a column gap. Runs touching either page
// edge are margins, not separators, and are skipped.
func (d *Detector) collectGapRuns(g *image.Gray) []gapRun {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()

	minGap := int(math.Ceil(float64(w) * d.cfg.MinGapWidthFrac))
	if minGap < 1 {
		minGap = 1
	}

	var runs []gapRun
	for s := 0; s < d.cfg.SampleStrips; s++ {
		y := b.Min.Y + (s+1)*h/(d.cfg.SampleStrips+1)
		if y >= b.Max.Y {
			y = b.Max.Y - 1
		}

		runStart := -1
		for x := 0; x < w; x++ {
			bright := g.GrayAt(b.Min.X+x, y).Y > d.cfg.BrightnessThreshold
			if bright {
				if runStart < 0 {
					runStart = x
				}
				continue
			}
			if runStart >= 0 {
				if runStart > 0 && x-runStart >= minGap {
					runs = append(runs, gapRun{strip: s, center: runStart + (x-runStart)/2})
				}
				runStart = -1
			}
		}
		// A run still open at the right edge is a margin; drop it.
	}
	return runs
}

// aspectFallback guesses a column count from page proportions when no
// consistent gaps were found. Wide landscape scans are usually multi-column
// sheets or fold-out spreads.
func (d *Detector) aspectFallback(w, h int) ocr.ColumnDetectionResult {
	ratio := float64(w) / float64(h)
	var cols int
	switch {
	case ratio > 2.5:
		cols = 4
	case ratio > 2.0:
		cols = 3
	case ratio > 1.5:
		cols = 2
	default:
		return ocr.ColumnDetectionResult{EstimatedColumns: 1, Confidence: 0.5}
	}
	return ocr.ColumnDetectionResult{
		HasColumns:       true,
		EstimatedColumns: cols,
		Confidence:       0.4,
	}
}

// gapCluster groups gap centers that fall within the cluster tolerance of
// each other across strips.
type gapCluster struct {
	sum    int
	count  int
	strips map[int]struct{}
}

func (c *gapCluster) add(r gapRun) {
	c.sum += r.center
	c.count++
	c.strips[r.strip] = struct{}{}
}

func (c *gapCluster) center() int {
	if c.count == 0 {
		return 0
	}
	return c.sum / c.count
}

// support counts the distinct strips the cluster appears in; repeated runs
// in the same strip do not add support.
func (c *gapCluster) support() int {
	return len(c.strips)
}

// clusterRuns groups runs whose centers sit within tol pixels of the
// running cluster mean. Runs are processed in center order so clustering
// is deterministic.
func clusterRuns(runs []gapRun, tol int) []*gapCluster {
	if len(runs) == 0 {
		return nil
	}

	sorted := make([]gapRun, len(runs))
	copy(sorted, runs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].center != sorted[j].center {
			return sorted[i].center < sorted[j].center
		}
		return sorted[i].strip < sorted[j].strip
	})

	var clusters []*gapCluster
	var cur *gapCluster
	for _, r := range sorted {
		if cur == nil || abs(r.center-cur.center()) > tol {
			cur = &gapCluster{strips: make(map[int]struct{})}
			clusters = append(clusters, cur)
		}
		cur.add(r)
	}
	return clusters
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

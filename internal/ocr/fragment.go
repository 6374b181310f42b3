// Package ocr provides the shared types for page OCR results: text
// fragments with geometry, per-engine results, and the orchestrator's
// final decision artifact. This package has no dependencies on other
// packages in this module to avoid import cycles.
package ocr

// Role is the structural classification of a text fragment.
type Role string

const (
	// RoleTitle marks the page's main title.
	RoleTitle Role = "title"
	// RoleSubtitle marks a secondary title.
	RoleSubtitle Role = "subtitle"
	// RoleHeading marks a section heading.
	RoleHeading Role = "heading"
	// RoleBody marks regular paragraph text.
	RoleBody Role = "body"
	// RoleCaption marks small text such as photo captions.
	RoleCaption Role = "caption"
)

// ParseRole converts a string to a Role.
// Returns RoleBody if the string is not recognized.
func ParseRole(s string) Role {
	switch s {
	case "title":
		return RoleTitle
	case "subtitle":
		return RoleSubtitle
	case "heading":
		return RoleHeading
	case "caption":
		return RoleCaption
	case "body":
		return RoleBody
	default:
		return RoleBody
	}
}

// BoundingBox is a fragment's location in pixels. Coordinates are always
// expressed in the original, unsplit page image, even for fragments that
// were recognized inside a split column.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Translate returns a copy of the box shifted by dx, dy. Adapters use this
// to map column-local coordinates back into page space.
func (b BoundingBox) Translate(dx, dy int) BoundingBox {
	return BoundingBox{X: b.X + dx, Y: b.Y + dy, Width: b.Width, Height: b.Height}
}

// CenterX returns the horizontal center of the box.
func (b BoundingBox) CenterX() int {
	return b.X + b.Width/2
}

// Bottom returns the Y coordinate just below the box.
func (b BoundingBox) Bottom() int {
	return b.Y + b.Height
}

// TextFragment is one OCR-detected block of text on a page.
type TextFragment struct {
	Text              string      `json:"text"`
	Confidence        float64     `json:"confidence"` // 0..1
	BoundingBox       BoundingBox `json:"bounding_box"`
	EstimatedFontSize float64     `json:"estimated_font_size,omitempty"` // derived, see classify package
	Role              Role        `json:"role,omitempty"`                // fixed once classification runs
	Column            int         `json:"column"`                        // source column index, 0 = rightmost
}

// Package structure renders sorted, classified fragments into a single
// readable document with lightweight markup, the form reviewers see and
// downstream storage keeps.
package structure

import (
	"regexp"
	"strings"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

// Four or more consecutive line breaks add nothing over a paragraph
// break; collapse them.
var blankRuns = regexp.MustCompile(`\n{4,}`)

// Build emits one paragraph-separated block per fragment. The first title
// becomes the document heading; any later title downgrades one level so a
// page never carries two top-level headings. Captions render emphasized,
// body text renders plain.
func Build(frags []ocr.TextFragment) string {
	blocks := make([]string, 0, len(frags))
	seenTitle := false

	for _, f := range frags {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}

		switch f.Role {
		case ocr.RoleTitle:
			if seenTitle {
				blocks = append(blocks, "## "+text)
			} else {
				blocks = append(blocks, "# "+text)
				seenTitle = true
			}
		case ocr.RoleSubtitle:
			blocks = append(blocks, "## "+text)
		case ocr.RoleHeading:
			blocks = append(blocks, "### "+text)
		case ocr.RoleCaption:
			blocks = append(blocks, "*"+text+"*")
		default:
			blocks = append(blocks, text)
		}
	}

	return blankRuns.ReplaceAllString(strings.Join(blocks, "\n\n"), "\n\n")
}

package structure

import (
	"strings"
	"testing"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

func roleFrag(role ocr.Role, text string) ocr.TextFragment {
	return ocr.TextFragment{Text: text, Role: role, Confidence: 0.9}
}

func TestBuildRoleMarkup(t *testing.T) {
	frags := []ocr.TextFragment{
		roleFrag(ocr.RoleTitle, "العنوان الرئيسي"),
		roleFrag(ocr.RoleSubtitle, "عنوان فرعي"),
		roleFrag(ocr.RoleHeading, "قسم"),
		roleFrag(ocr.RoleBody, "نص الفقرة الأولى."),
		roleFrag(ocr.RoleCaption, "تعليق على الصورة"),
	}

	got := Build(frags)

	want := strings.Join([]string{
		"# العنوان الرئيسي",
		"## عنوان فرعي",
		"### قسم",
		"نص الفقرة الأولى.",
		"*تعليق على الصورة*",
	}, "\n\n")
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBuildSecondTitleDowngrades(t *testing.T) {
	frags := []ocr.TextFragment{
		roleFrag(ocr.RoleTitle, "الأول"),
		roleFrag(ocr.RoleBody, "نص"),
		roleFrag(ocr.RoleTitle, "الثاني"),
	}

	got := Build(frags)

	if !strings.HasPrefix(got, "# الأول") {
		t.Errorf("first title not top level: %q", got)
	}
	if !strings.Contains(got, "## الثاني") {
		t.Errorf("second title not downgraded: %q", got)
	}
	if strings.Count(got, "# ")-strings.Count(got, "## ") != 1 {
		t.Errorf("want exactly one top-level heading: %q", got)
	}
}

func TestBuildSkipsBlankFragments(t *testing.T) {
	frags := []ocr.TextFragment{
		roleFrag(ocr.RoleBody, "قبل"),
		roleFrag(ocr.RoleBody, "   "),
		roleFrag(ocr.RoleBody, ""),
		roleFrag(ocr.RoleBody, "بعد"),
	}

	got := Build(frags)

	if want := "قبل\n\nبعد"; got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBuildCollapsesBlankRuns(t *testing.T) {
	frags := []ocr.TextFragment{
		roleFrag(ocr.RoleBody, "أعلى\n\n\n\n\nأسفل"),
		roleFrag(ocr.RoleBody, "خاتمة"),
	}

	got := Build(frags)

	if strings.Contains(got, "\n\n\n\n") {
		t.Errorf("blank run not collapsed: %q", got)
	}
	if want := "أعلى\n\nأسفل\n\nخاتمة"; got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBuildKeepsShortBlankRuns(t *testing.T) {
	// Three consecutive breaks sit below the collapse threshold.
	frags := []ocr.TextFragment{
		roleFrag(ocr.RoleBody, "أ\n\n\nب"),
	}

	got := Build(frags)

	if want := "أ\n\n\nب"; got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBuildUnclassifiedFallsBackToBody(t *testing.T) {
	frags := []ocr.TextFragment{{Text: "نص بلا تصنيف"}}

	got := Build(frags)

	if want := "نص بلا تصنيف"; got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

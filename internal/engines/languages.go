package engines

// Request language hints use two-letter BCP-47 codes ("ar", "en"). Tesseract
// wants ISO 639-3 traineddata names ("ara", "eng"), so local engines map
// through this table. Three-letter hints pass through untouched; unknown
// two-letter hints are dropped rather than handed to Tesseract to fail on.
var tesseractLangCodes = map[string]string{
	"ar": "ara",
	"en": "eng",
	"fa": "fas",
	"ur": "urd",
	"fr": "fra",
	"de": "deu",
	"es": "spa",
	"it": "ita",
	"tr": "tur",
	"el": "ell",
	"ru": "rus",
}

// TesseractLanguages converts BCP-47 hints to Tesseract traineddata names.
// With no usable hints it falls back to Arabic, the archive's primary script.
func TesseractLanguages(hints []string) []string {
	out := make([]string, 0, len(hints))
	for _, h := range hints {
		if code, ok := tesseractLangCodes[h]; ok {
			out = append(out, code)
			continue
		}
		if len(h) == 3 {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return []string{"ara"}
	}
	return out
}

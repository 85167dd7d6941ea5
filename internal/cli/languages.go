package cli

var languageNames = map[string]string{
	"eng":     "English",
	"deu":     "German",
	"fra":     "French",
	"spa":     "Spanish",
	"ita":     "Italian",
	"por":     "Portuguese",
	"rus":     "Russian",
	"chi_sim": "Chinese (Simplified)",
	"chi_tra": "Chinese (Traditional)",
	"jpn":     "Japanese",
	"kor":     "Korean",
	"ara":     "Arabic",
	"hin":     "Hindi",
	"nld":     "Dutch",
	"pol":     "Polish",
	"osd":     "Orientation and script detection",
}

// LanguageName returns a display name for a tesseract language code, or the
// code itself when it is not known.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

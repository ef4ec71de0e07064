package detection

import "slices"

// Languages are the accepted language tags.
var Languages = []string{"tamil", "english", "hindi", "malayalam", "telugu"}

// ValidLanguage reports whether tag is one of Languages. Tags are
// case-sensitive.
func ValidLanguage(tag string) bool {
	return slices.Contains(Languages, tag)
}

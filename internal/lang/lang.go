// Package lang normalizes media language tags to a small canonical set.
//
// Probed files carry a mix of ISO 639-1, ISO 639-2 and free-form tags
// ("deu", "ger", "german", ...). All language-related comparisons in the
// selector and cache go through Normalize so that keep/sort preferences
// written as 2-letter tags match every variant.
package lang

import "strings"

// Unknown is the canonical tag for missing or undetermined languages.
const Unknown = "unknown"

type entry struct {
	canonical string
	aliases   []string
}

// Japanese normalizes to "jp" rather than ISO "ja"; existing cache rows
// and user preference flags use that tag.
var table = []entry{
	{"de", []string{"de", "deu", "ger", "german", "deutsch"}},
	{"en", []string{"en", "eng", "english"}},
	{"jp", []string{"jp", "ja", "jpn", "japanese"}},
	{"fr", []string{"fr", "fra", "fre", "french"}},
	{"es", []string{"es", "esp", "spa", "spanish"}},
	{"it", []string{"it", "ita", "italian"}},
	{Unknown, []string{Unknown, "und", ""}},
}

var byAlias map[string]string

func init() {
	byAlias = make(map[string]string, len(table)*4)
	for _, e := range table {
		for _, a := range e.aliases {
			byAlias[a] = e.canonical
		}
	}
}

// Normalize maps an arbitrary language code or name to a canonical tag.
// Empty input becomes Unknown. Tags without a mapping pass through
// lower-cased unchanged, so unknown-but-distinct languages stay distinct.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return Unknown
	}
	if c, ok := byAlias[code]; ok {
		return c
	}
	return code
}

// NormalizeList applies Normalize to a comma-separated preference string
// as passed on the command line ("de, en,jp").
func NormalizeList(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, Normalize(p))
		}
	}
	return out
}

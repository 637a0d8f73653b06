package language

import "strings"

type entry struct {
	code2   string   // ISO 639-1
	code3   string   // ISO 639-2 primary
	alt3    string   // ISO 639-2 bibliographic variant ("fre" vs "fra")
	display string   // Human-readable name
	words   []string // Full word forms ("english")
	aligned bool     // WhisperX ships a default alignment model
}

// Languages WhisperX transcribes; aligned entries also get word timestamps.
var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}, true},
	{"es", "spa", "", "Spanish", []string{"spanish", "castilian"}, true},
	{"fr", "fra", "fre", "French", []string{"french"}, true},
	{"de", "deu", "ger", "German", []string{"german"}, true},
	{"it", "ita", "", "Italian", []string{"italian"}, true},
	{"pt", "por", "", "Portuguese", []string{"portuguese"}, true},
	{"nl", "nld", "dut", "Dutch", []string{"dutch", "flemish"}, true},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}, true},
	{"zh", "zho", "chi", "Chinese", []string{"chinese", "mandarin"}, true},
	{"ko", "kor", "", "Korean", []string{"korean"}, true},
	{"ru", "rus", "", "Russian", []string{"russian"}, true},
	{"uk", "ukr", "", "Ukrainian", []string{"ukrainian"}, true},
	{"pl", "pol", "", "Polish", []string{"polish"}, true},
	{"cs", "ces", "cze", "Czech", []string{"czech"}, true},
	{"ar", "ara", "", "Arabic", []string{"arabic"}, true},
	{"he", "heb", "", "Hebrew", []string{"hebrew"}, true},
	{"tr", "tur", "", "Turkish", []string{"turkish"}, true},
	{"el", "ell", "gre", "Greek", []string{"greek"}, true},
	{"fi", "fin", "", "Finnish", []string{"finnish"}, true},
	{"da", "dan", "", "Danish", []string{"danish"}, true},
	{"hu", "hun", "", "Hungarian", []string{"hungarian"}, true},
	{"fa", "fas", "per", "Persian", []string{"persian", "farsi"}, true},
	{"ur", "urd", "", "Urdu", []string{"urdu"}, true},
	{"vi", "vie", "", "Vietnamese", []string{"vietnamese"}, true},
	{"hi", "hin", "", "Hindi", []string{"hindi"}, false},
	{"sv", "swe", "", "Swedish", []string{"swedish"}, false},
	{"no", "nor", "", "Norwegian", []string{"norwegian"}, false},
	{"id", "ind", "", "Indonesian", []string{"indonesian"}, false},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	return byWord[code]
}

// ToISO2 converts a language code or name to ISO 639-1. Unknown 2-letter
// codes pass through; anything else unrecognized returns "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns a human-readable language name. Empty input yields
// "Auto-detect"; unrecognized input is uppercased.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Auto-detect"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// HasAlignment reports whether WhisperX can produce word timestamps for the
// language without a custom alignment model.
func HasAlignment(code string) bool {
	e := lookup(code)
	return e != nil && e.aligned
}

package assembler

import (
	"regexp"
	"strings"
)

// QuickClean is the synchronous, dictionary-free repair pass applied before
// a segment is first surfaced: a small fixed set of known fragmented-word
// artifacts plus whitespace and punctuation-spacing normalization. The
// asynchronous correction pass handles everything this cannot.

type fragmentFix struct {
	re    *regexp.Regexp
	fixed string
}

// artifacts the streaming sources are known to produce: letters or
// syllables separated by spurious spaces
var fragmentFixes = []fragmentFix{
	newFix(`ho la`, "hola"),
	newFix(`g racias`, "gracias"),
	newFix(`gra cias`, "gracias"),
	newFix(`bue nos`, "buenos"),
	newFix(`enton ces`, "entonces"),
	newFix(`tam bien`, "tambien"),
	newFix(`o k`, "ok"),
	newFix(`hel lo`, "hello"),
	newFix(`th anks`, "thanks"),
	newFix(`plea se`, "please"),
	newFix(`mee ting`, "meeting"),
}

func newFix(broken, fixed string) fragmentFix {
	return fragmentFix{
		re:    regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(broken) + `\b`),
		fixed: fixed,
	}
}

var (
	collapseWS     = regexp.MustCompile(`\s+`)
	spaceBeforePun = regexp.MustCompile(`\s+([.,!?;:…])`)
	missingSpace   = regexp.MustCompile(`([.,!?;:])(\p{L})`)
)

func QuickClean(s string) string {
	s = collapseWS.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	for _, f := range fragmentFixes {
		s = f.re.ReplaceAllStringFunc(s, func(m string) string {
			return matchCase(f.fixed, m)
		})
	}

	s = spaceBeforePun.ReplaceAllString(s, "$1")
	s = missingSpace.ReplaceAllString(s, "$1 $2")
	return s
}

// matchCase capitalizes the replacement when the artifact started uppercase.
func matchCase(fixed, original string) string {
	if original == "" || fixed == "" {
		return fixed
	}
	first := original[0]
	if first >= 'A' && first <= 'Z' {
		return strings.ToUpper(fixed[:1]) + fixed[1:]
	}
	return fixed
}

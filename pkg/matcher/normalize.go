package matcher

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultAbbreviations expands school abbreviations. Keys and values are in
// normalized form (lowercase, punctuation replaced by spaces).
var DefaultAbbreviations = map[string]string{
	"uconn":                 "connecticut",
	"ole miss":              "mississippi",
	"usc":                   "southern california",
	"ucla":                  "california los angeles",
	"ucf":                   "central florida",
	"usf":                   "south florida",
	"utsa":                  "texas san antonio",
	"utep":                  "texas el paso",
	"smu":                   "southern methodist",
	"tcu":                   "texas christian",
	"lsu":                   "louisiana state",
	"byu":                   "brigham young",
	"vcu":                   "virginia commonwealth",
	"unc":                   "north carolina",
	"uva":                   "virginia",
	"umbc":                  "maryland baltimore county",
	"utrgv":                 "texas rio grande valley",
	"uab":                   "alabama birmingham",
	"fgcu":                  "florida gulf coast",
	"n c":                   "north carolina",
	"nc":                    "north carolina",
	"s c":                   "south carolina",
	"w va":                  "west virginia",
	"fla":                   "florida",
	"ga":                    "georgia",
	"ala":                   "alabama",
	"ark":                   "arkansas",
	"tenn":                  "tennessee",
	"uc davis":              "california davis",
	"uc irvine":             "california irvine",
	"uc riverside":          "california riverside",
	"uc santa barbara":      "california santa barbara",
	"csu bakersfield":       "cal state bakersfield",
	"csu fullerton":         "cal state fullerton",
	"csu northridge":        "cal state northridge",
	"liu brooklyn":          "liu",
	"umass lowell":          "massachusetts lowell",
	"siu edwardsville":      "southern illinois edwardsville",
	"ut martin":             "tennessee martin",
	"unc wilmington":        "wilmington",
	"college of charleston": "charleston",
}

// DefaultMascots are nicknames stripped from the end of a name
var DefaultMascots = []string{
	"aggies", "badgers", "bears", "bluejays", "blue devils", "boilermakers", "bruins",
	"buckeyes", "bulldogs", "cardinals", "cougars", "crimson tide", "cyclones", "gaels",
	"gators", "golden eagles", "hawkeyes", "hoosiers", "huskies", "jayhawks", "longhorns",
	"mountaineers", "razorbacks", "red raiders", "spartans", "tar heels", "tigers",
	"trojans", "volunteers", "wildcats", "wolverines",
}

type phrase struct {
	from string
	to   string
}

// Normalizer canonicalizes team and conference names for comparison. It is immutable
// after construction and safe for concurrent use.
type Normalizer struct {
	phrases []phrase
	mascots []string
}

// NewNormalizer builds a normalizer from abbreviation expansions and mascot suffixes.
// Both are normalized on the way in so config values can be written naturally.
func NewNormalizer(abbreviations map[string]string, mascots []string) *Normalizer {
	n := &Normalizer{}

	for from, to := range abbreviations {
		f := n.clean(from)
		if f == "" {
			continue
		}
		n.phrases = append(n.phrases, phrase{from: f, to: n.clean(to)})
	}
	// Longest phrase first so "unc wilmington" wins over "unc"
	sort.Slice(n.phrases, func(i, j int) bool {
		wi, wj := len(strings.Fields(n.phrases[i].from)), len(strings.Fields(n.phrases[j].from))
		if wi != wj {
			return wi > wj
		}
		if len(n.phrases[i].from) != len(n.phrases[j].from) {
			return len(n.phrases[i].from) > len(n.phrases[j].from)
		}
		return n.phrases[i].from < n.phrases[j].from
	})

	for _, m := range mascots {
		if c := n.clean(m); c != "" {
			n.mascots = append(n.mascots, c)
		}
	}
	sort.Slice(n.mascots, func(i, j int) bool {
		if len(n.mascots[i]) != len(n.mascots[j]) {
			return len(n.mascots[i]) > len(n.mascots[j])
		}
		return n.mascots[i] < n.mascots[j]
	})

	return n
}

// DefaultNormalizer returns a normalizer with the built-in tables
func DefaultNormalizer() *Normalizer {
	return NewNormalizer(DefaultAbbreviations, DefaultMascots)
}

// Normalize returns the canonical form of name. Empty input yields "".
func (n *Normalizer) Normalize(name string) string {
	s := n.clean(name)
	if s == "" {
		return ""
	}

	padded := " " + s + " "
	for _, p := range n.phrases {
		padded = strings.ReplaceAll(padded, " "+p.from+" ", " "+p.to+" ")
	}

	tokens := strings.Fields(padded)
	for i, tok := range tokens {
		if tok != "st" {
			continue
		}
		// "St. John's" vs "Michigan St."
		if i == 0 && len(tokens) > 1 {
			tokens[i] = "saint"
		} else {
			tokens[i] = "state"
		}
	}
	s = strings.Join(tokens, " ")

	for _, m := range n.mascots {
		if strings.HasSuffix(s, " "+m) {
			s = strings.TrimSuffix(s, " "+m)
			break
		}
	}

	return s
}

// clean lowercases, strips accents and punctuation and collapses whitespace
func (n *Normalizer) clean(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, s)

	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.NewReplacer("'", "", "’", "").Replace(s)

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// containsPhrase reports whether needle occurs in haystack on token boundaries
func containsPhrase(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// Package category folds the board's fine-grained labels into a small canonical set.
package category

import "strings"

// Canonical labels a notice can end up with after normalization.
const (
	Hansung         = "한성공지"
	Academic        = "학사"
	Extracurricular = "비교과"
	Career          = "진로 및 취·창업"
	Scholarship     = "장학"
	International   = "국제"
)

// Rule maps one source label to its canonical label.
type Rule struct {
	Label     string
	Canonical string
}

// rules is evaluated top to bottom and the first matching label wins.
// Each label appears once; "기타" used to be listed under both the
// employment and start-up groups and is kept under Career only.
var rules = []Rule{
	{"진로", Career},

	// employment
	{"강소기업채용", Career},
	{"채용정보", Career},
	{"인턴쉽", Career},
	{"교육프로그램", Career},
	{"고시반", Career},
	{"기타", Career},

	// start-up
	{"창업정보", Career},
	{"창업공모전", Career},
	{"창업행사", Career},

	// scholarship
	{"국가장학금", Scholarship},
	{"교외장학금", Scholarship},
	{"교내장학금", Scholarship},
	{"면학근로", Scholarship},
	{"학자금대출", Scholarship},
	{"국가근로", Scholarship},
	{"공모전 등", Scholarship},
	{"비교과장학", Scholarship},
}

// Normalize returns the canonical label for raw, or raw unchanged when no rule matches.
func Normalize(raw string) string {
	label := strings.TrimSpace(raw)
	for _, r := range rules {
		if r.Label == label {
			return r.Canonical
		}
	}
	return raw
}

// Canonical returns the canonical label set in display order.
func Canonical() []string {
	return []string{Hansung, Academic, Extracurricular, Career, Scholarship, International}
}

// Rules returns a copy of the mapping table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

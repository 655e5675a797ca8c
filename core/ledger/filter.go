package ledger

import (
	"strings"

	"github.com/trezcool/bursar/core"
)

type Filter struct {
	Status Status `json:"status" validate:"omitempty,ledgerstatus"`
	// Search does a case-insensitive match on one of Summary.StudentName or Summary.StudentCode.
	Search string `json:"search" validate:"omitempty,max=100"`
}

func (f *Filter) Clean() {
	f.Status = Status(strings.ToUpper(core.CleanString(string(f.Status))))
	f.Search = core.CleanString(f.Search)
}

func (f *Filter) IsEmpty() bool {
	return f.Status == "" && f.Search == ""
}

func (f *Filter) Validate() error {
	f.Clean()
	return core.Validate.Struct(f)
}

// Apply returns the summaries matching all the set Filter fields, in their original order.
func (f Filter) Apply(summaries []Summary) []Summary {
	if f.IsEmpty() {
		return summaries
	}
	query := strings.ToLower(f.Search)
	matches := make([]Summary, 0, len(summaries))
	for _, s := range summaries {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(s.StudentName), query) &&
			!strings.Contains(strings.ToLower(s.StudentCode), query) {
			continue
		}
		matches = append(matches, s)
	}
	return matches
}

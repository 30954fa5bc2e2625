package patient

import (
	"sort"
	"strings"
)

// ListOptions is the patient list view state: a name filter and one sort key.
type ListOptions struct {
	Query string
	Sort  string // name, risk, conditions or hcpcs
	Desc  bool
}

var validSorts = map[string]bool{
	"name": true, "risk": true, "conditions": true, "hcpcs": true,
}

func ParseListOptions(q, sortKey, dir string) ListOptions {
	if !validSorts[sortKey] {
		sortKey = "name"
	}
	return ListOptions{Query: q, Sort: sortKey, Desc: strings.EqualFold(dir, "desc")}
}

// Filter applies the name search and sort to patients. Risk sorts by
// condition count, the same as the conditions column.
func Filter(patients []*Patient, opts ListOptions) []*Patient {
	q := strings.ToLower(opts.Query)
	out := make([]*Patient, 0, len(patients))
	for _, p := range patients {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}

	less := func(a, b *Patient) int {
		switch opts.Sort {
		case "risk", "conditions":
			return len(a.Conditions) - len(b.Conditions)
		case "hcpcs":
			return strings.Compare(a.HCPCSCode, b.HCPCSCode)
		default:
			return strings.Compare(a.Name, b.Name)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := less(out[i], out[j])
		if c == 0 {
			return out[i].ID < out[j].ID
		}
		if opts.Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

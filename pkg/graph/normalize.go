package graph

import (
	"strings"

	"github.com/separk-1/incident-regulation-mapping/pkg/common"
)

// Normalize canonicalizes a record's attribute lists into deduplicated
// description lists. Every requested category is present in the result,
// with an empty slice when the record has nothing for it, so callers never
// branch on missing keys. Entries are whitespace-trimmed, blanks dropped,
// and duplicates removed keeping first occurrence. Case is preserved:
// descriptions are short curated keywords and "Valve Misalignment" and
// "valve misalignment" are distinct identities.
func Normalize(record *common.IncidentRecord, categories []common.Category) map[common.Category][]string {
	out := make(map[common.Category][]string, len(categories))
	for _, cat := range categories {
		var values []string
		if record != nil {
			values = record.Attributes[cat]
		}

		list := make([]string, 0, len(values))
		seen := make(map[string]struct{}, len(values))
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			list = append(list, v)
		}
		out[cat] = list
	}
	return out
}

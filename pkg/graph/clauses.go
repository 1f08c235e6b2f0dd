package graph

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/separk-1/incident-regulation-mapping/pkg/common"
)

// clauseCSVColumns maps the clause table's header names to their meaning.
// content_3 holds the upper-level clause text, content_4 the lower-level.
const (
	clauseColCFR   = "CFR"
	clauseColUpper = "content_3"
	clauseColLower = "content_4"
)

// LoadClauseTable parses the regulation clause CSV into a lookup table
// keyed by CFR citation. Rows without a CFR value are skipped; a repeated
// citation keeps the last row seen.
func LoadClauseTable(r io.Reader) (common.ClauseTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read clause table header: %w", err)
	}

	colIdx := map[string]int{}
	for i, name := range header {
		colIdx[strings.TrimSpace(name)] = i
	}
	cfrIdx, ok := colIdx[clauseColCFR]
	if !ok {
		return nil, fmt.Errorf("clause table is missing the %s column", clauseColCFR)
	}
	upperIdx, hasUpper := colIdx[clauseColUpper]
	lowerIdx, hasLower := colIdx[clauseColLower]

	table := common.ClauseTable{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read clause table row: %w", err)
		}
		if cfrIdx >= len(row) {
			continue
		}
		cfr := strings.TrimSpace(row[cfrIdx])
		if cfr == "" {
			continue
		}
		clause := common.Clause{CFR: cfr}
		if hasUpper && upperIdx < len(row) {
			clause.Upper = strings.TrimSpace(row[upperIdx])
		}
		if hasLower && lowerIdx < len(row) {
			clause.Lower = strings.TrimSpace(row[lowerIdx])
		}
		table[cfr] = clause
	}

	return table, nil
}

// ResolveClauses splits a record's clause field on ", ", trims each token,
// and returns the clauses found in the table. Unknown tokens are dropped:
// the extraction step emits free text and partial resolution is expected.
func ResolveClauses(clauseText string, clauses common.ClauseTable) []common.Clause {
	if strings.TrimSpace(clauseText) == "" || len(clauses) == 0 {
		return nil
	}

	var resolved []common.Clause
	seen := map[string]bool{}
	for _, token := range strings.Split(clauseText, ", ") {
		token = strings.TrimSpace(token)
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		if clause, ok := clauses[token]; ok {
			resolved = append(resolved, clause)
		}
	}
	return resolved
}

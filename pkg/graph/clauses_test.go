package graph

import (
	"reflect"
	"strings"
	"testing"

	"github.com/separk-1/incident-regulation-mapping/pkg/common"
)

func TestLoadClauseTable(t *testing.T) {
	csvData := strings.Join([]string{
		`CFR,content_3,content_4`,
		`10 CFR 50.72,Immediate notification requirements,"Reports, within one hour"`,
		`10 CFR 50.73,Licensee event report system,`,
		`,orphan row without citation,`,
		`10 CFR 50.73,Licensee event report system (revised),`,
	}, "\n")

	table, err := LoadClauseTable(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("LoadClauseTable() error = %v", err)
	}

	if len(table) != 2 {
		t.Fatalf("len(table) = %d, want 2", len(table))
	}

	got, ok := table["10 CFR 50.72"]
	if !ok {
		t.Fatal("table missing 10 CFR 50.72")
	}
	want := common.Clause{
		CFR:   "10 CFR 50.72",
		Upper: "Immediate notification requirements",
		Lower: "Reports, within one hour",
	}
	if got != want {
		t.Fatalf("clause = %+v, want %+v", got, want)
	}

	// Repeated citation keeps the last row.
	if table["10 CFR 50.73"].Upper != "Licensee event report system (revised)" {
		t.Fatalf("repeated citation kept %q, want last row", table["10 CFR 50.73"].Upper)
	}
}

func TestLoadClauseTableMissingCFRColumn(t *testing.T) {
	_, err := LoadClauseTable(strings.NewReader("content_3,content_4\na,b\n"))
	if err == nil {
		t.Fatal("LoadClauseTable() error = nil, want missing-column failure")
	}
}

func TestResolveClauses(t *testing.T) {
	table := common.ClauseTable{
		"10 CFR 50.72": {CFR: "10 CFR 50.72", Upper: "Immediate notification"},
		"10 CFR 50.73": {CFR: "10 CFR 50.73", Upper: "Licensee event reports"},
	}

	tests := []struct {
		name   string
		clause string
		want   []string
	}{
		{
			name:   "known tokens resolve in order",
			clause: "10 CFR 50.73, 10 CFR 50.72",
			want:   []string{"10 CFR 50.73", "10 CFR 50.72"},
		},
		{
			name:   "unknown token dropped silently",
			clause: "10 CFR 50.72, 10 CFR 99.99",
			want:   []string{"10 CFR 50.72"},
		},
		{
			name:   "duplicate token resolves once",
			clause: "10 CFR 50.72, 10 CFR 50.72",
			want:   []string{"10 CFR 50.72"},
		},
		{
			name:   "empty clause field",
			clause: "   ",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved := ResolveClauses(tt.clause, table)
			var got []string
			for _, c := range resolved {
				got = append(got, c.CFR)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ResolveClauses() = %v, want %v", got, tt.want)
			}
		})
	}
}

package common

// Category identifies one attribute dimension of an incident record.
// Attribute nodes are labeled with the category and keyed by their
// description text, so two incidents reporting the identical description
// under the same category share one node.
type Category string

const (
	CategoryTask             Category = "Task"
	CategoryEvent            Category = "Event"
	CategoryCause            Category = "Cause"
	CategoryInfluence        Category = "Influence"
	CategoryCorrectiveAction Category = "Corrective Actions"
)

// DefaultCategories is the standard attribute set extracted from licensee
// event reports. Variant extractions (e.g. HSI-focused runs) configure a
// different list on the graph client instead of using separate code paths.
var DefaultCategories = []Category{
	CategoryTask,
	CategoryEvent,
	CategoryCause,
	CategoryInfluence,
	CategoryCorrectiveAction,
}

// categoryEdgeTypes is the static dispatch table from attribute category
// to the relationship type linking an incident to that attribute node.
// Edge types are never derived from record input.
var categoryEdgeTypes = map[Category]string{
	CategoryTask:             "RELATED_TO_TASK",
	CategoryEvent:            "HAS_EVENT",
	CategoryCause:            "HAS_CAUSE",
	CategoryInfluence:        "HAS_INFLUENCE",
	CategoryCorrectiveAction: "HAS_CORRECTIVE_ACTIONS",
}

// categoryLabels maps a category to its graph node label.
var categoryLabels = map[Category]string{
	CategoryTask:             "Task",
	CategoryEvent:            "Event",
	CategoryCause:            "Cause",
	CategoryInfluence:        "Influence",
	CategoryCorrectiveAction: "CorrectiveActions",
}

// EdgeType returns the relationship type for incident→attribute edges of
// this category, and whether the category is known.
func (c Category) EdgeType() (string, bool) {
	t, ok := categoryEdgeTypes[c]
	return t, ok
}

// Label returns the node label under which attribute values of this
// category are stored, and whether the category is known.
func (c Category) Label() (string, bool) {
	l, ok := categoryLabels[c]
	return l, ok
}

// Facility identifies the plant unit where an incident occurred.
// Incidents at the same unit share one Facility node.
type Facility struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// RecordMetadata carries the scalar fields of an incident record.
// Clause holds comma-separated CFR citations as produced by the upstream
// extraction step; it is not authoritative on formatting.
type RecordMetadata struct {
	Facility  Facility `json:"facility"`
	EventDate string   `json:"event_date"`
	Title     string   `json:"title"`
	Clause    string   `json:"clause"`
}

// IncidentRecord is one structured incident as produced by the upstream
// attribute-extraction step. Filename is the stable external identifier
// and the unique key of the Incident node.
type IncidentRecord struct {
	Filename   string                `json:"filename"`
	Attributes map[Category][]string `json:"attributes"`
	Metadata   RecordMetadata        `json:"metadata"`
}

// Clause is one regulatory citation from the preloaded clause table,
// with its upper- and lower-level descriptive context.
type Clause struct {
	CFR   string `json:"cfr"`
	Upper string `json:"upper"`
	Lower string `json:"lower"`
}

// ClauseTable maps a citation string to its clause entry. Lookups are
// exact-match; tokens absent from the table are dropped during linking.
type ClauseTable map[string]Clause

// SimilarityBreakdown holds the per-category similarity scores computed
// for one incident pair alongside the weighted total.
type SimilarityBreakdown struct {
	Total     float64              `json:"total"`
	PerAttrib map[Category]float64 `json:"per_attribute"`
}

// SimilarityEdge describes one materialized incident→incident similarity
// link together with the task pair that triggered it. Multiple edges may
// exist between the same ordered pair, one per triggering task pair.
type SimilarityEdge struct {
	From     string               `json:"from"`
	To       string               `json:"to"`
	Total    float64              `json:"total_similarity"`
	Scores   map[Category]float64 `json:"scores"`
	TaskFrom string               `json:"task1"`
	TaskTo   string               `json:"task2"`
}

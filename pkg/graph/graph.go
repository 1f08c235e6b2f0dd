package graph

import (
	"github.com/separk-1/incident-regulation-mapping/pkg/store"
)

const (
	labelIncident = "Incident"
	labelFacility = "Facility"
	labelCFR      = "CFR"

	edgeOccurredAt  = "OCCURRED_AT"
	edgeRegulatedBy = "REGULATED_BY"
	edgeSimilarTask = "SIMILAR_TASK"
)

// IncidentRef returns the node ref of an incident, keyed by filename.
func IncidentRef(filename string) store.NodeRef {
	return store.NodeRef{
		Label: labelIncident,
		Key:   map[string]any{"filename": filename},
	}
}

// FacilityRef returns the node ref of a facility unit, keyed by name and unit.
func FacilityRef(name, unit string) store.NodeRef {
	return store.NodeRef{
		Label: labelFacility,
		Key:   map[string]any{"name": name, "unit": unit},
	}
}

// ClauseRef returns the node ref of a regulation clause, keyed by citation.
func ClauseRef(cfr string) store.NodeRef {
	return store.NodeRef{
		Label: labelCFR,
		Key:   map[string]any{"cfr": cfr},
	}
}

// AttributeRef returns the node ref of a shared attribute value node.
func AttributeRef(label, description string) store.NodeRef {
	return store.NodeRef{
		Label: label,
		Key:   map[string]any{"description": description},
	}
}

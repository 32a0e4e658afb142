package review

import "github.com/signpost/signpost/internal/domain/symptom"

type Counts struct {
	Pending         int `json:"pending"`
	Approved        int `json:"approved"`
	ChangesRequired int `json:"changesRequired"`
	All             int `json:"all"`
}

// ComputeCounts tallies review progress for symptoms.
//
// Approved and ChangesRequired count status rows, including rows whose symptom
// is no longer in the set. Pending counts symptoms without a row plus rows
// explicitly PENDING, so Pending == All-Approved-ChangesRequired only holds
// when every row matches a symptom.
func ComputeCounts(symptoms []symptom.EffectiveSymptom, statuses StatusMap) Counts {
	c := Counts{All: len(symptoms)}
	for _, s := range symptoms {
		if _, ok := statuses[s.Key()]; !ok {
			c.Pending++
		}
	}
	for _, rs := range statuses {
		switch rs.Status {
		case StatusApproved:
			c.Approved++
		case StatusChangesRequired:
			c.ChangesRequired++
		case StatusPending:
			c.Pending++
		}
	}
	return c
}

package review

import (
	"errors"
	"testing"
	"time"

	"github.com/signpost/signpost/internal/domain/symptom"
)

func reviewedAtStatus(id string, st Status, at time.Time) ReviewStatus {
	rs := status(id, "", st)
	rs.LastReviewedAt = &at
	return rs
}

func rowIDs(rows []Row) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.Symptom.ID
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func fixture() ([]symptom.EffectiveSymptom, StatusMap) {
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	symptoms := []symptom.EffectiveSymptom{
		sym("a", "", "Abdominal pain"),
		sym("b", "", "back pain"),
		sym("c", "", "Chest pain"),
		sym("d", "", "Dizziness"),
		sym("e", "", "Earache"),
	}
	statuses := NewStatusMap([]ReviewStatus{
		reviewedAtStatus("a", StatusApproved, t0),
		reviewedAtStatus("c", StatusChangesRequired, t0.Add(2*time.Hour)),
		reviewedAtStatus("d", StatusPending, t0.Add(time.Hour)),
	})
	return symptoms, statuses
}

func TestResolveRows_Filters(t *testing.T) {
	symptoms, statuses := fixture()
	tests := []struct {
		filter Filter
		want   []string
	}{
		{FilterPending, []string{"b", "d", "e"}},
		{FilterApproved, []string{"a"}},
		{FilterChangesRequested, []string{"c"}},
		{FilterAll, []string{"a", "b", "c", "d", "e"}},
	}
	for _, tt := range tests {
		got := rowIDs(ResolveRows(symptoms, statuses, RowQuery{Filter: tt.filter, Sort: SortNameAsc}))
		if !equalIDs(got, tt.want) {
			t.Errorf("filter %s: expected %v, got %v", tt.filter, tt.want, got)
		}
	}
}

func TestResolveRows_ReviewState(t *testing.T) {
	symptoms, statuses := fixture()
	rows := ResolveRows(symptoms, statuses, RowQuery{Filter: FilterPending})
	states := map[string]State{}
	for _, r := range rows {
		states[r.Symptom.ID] = r.ReviewState
		if r.Status != StatusPending {
			t.Errorf("%s: expected PENDING, got %s", r.Symptom.ID, r.Status)
		}
	}
	if states["b"] != StateNotReviewed || states["d"] != StatePending {
		t.Errorf("unexpected states: %v", states)
	}
	if rows[0].ReviewStatus != nil {
		t.Error("unreviewed row must not carry a review status")
	}
}

func TestResolveRows_SearchCaseInsensitive(t *testing.T) {
	symptoms, statuses := fixture()
	got := rowIDs(ResolveRows(symptoms, statuses, RowQuery{Filter: FilterAll, Search: "PAIN"}))
	if !equalIDs(got, []string{"a", "b", "c"}) {
		t.Errorf("expected [a b c], got %v", got)
	}
	got = rowIDs(ResolveRows(symptoms, statuses, RowQuery{Filter: FilterPending, Search: "pain"}))
	if !equalIDs(got, []string{"b"}) {
		t.Errorf("search must combine with filter, got %v", got)
	}
}

func TestResolveRows_Sorts(t *testing.T) {
	symptoms, statuses := fixture()
	tests := []struct {
		sort SortKey
		want []string
	}{
		{SortNameAsc, []string{"a", "b", "c", "d", "e"}},
		{SortNameDesc, []string{"e", "d", "c", "b", "a"}},
		// c (+2h), d (+1h), a (+0h), then unreviewed b and e in input order
		{SortChangedNew, []string{"c", "d", "a", "b", "e"}},
		// pending (b, d, e), changes required (c), approved (a)
		{SortStatus, []string{"b", "d", "e", "c", "a"}},
	}
	for _, tt := range tests {
		got := rowIDs(ResolveRows(symptoms, statuses, RowQuery{Filter: FilterAll, Sort: tt.sort}))
		if !equalIDs(got, tt.want) {
			t.Errorf("sort %s: expected %v, got %v", tt.sort, tt.want, got)
		}
	}
}

func TestResolveRows_StableForEqualNames(t *testing.T) {
	symptoms := []symptom.EffectiveSymptom{
		sym("fever", "Adult", "Fever"),
		sym("fever", "U5", "Fever"),
		sym("fever", "O65", "Fever"),
	}
	for _, s := range []SortKey{SortNameAsc, SortNameDesc, SortStatus, SortChangedNew} {
		rows := ResolveRows(symptoms, StatusMap{}, RowQuery{Filter: FilterAll, Sort: s})
		if rows[0].Symptom.AgeGroup != "Adult" || rows[1].Symptom.AgeGroup != "U5" || rows[2].Symptom.AgeGroup != "O65" {
			t.Errorf("sort %s reordered equal rows", s)
		}
	}
}

func TestParseRowQuery(t *testing.T) {
	q, err := ParseRowQuery("", "cough", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Filter != FilterPending || q.Sort != SortNameAsc || q.Search != "cough" {
		t.Errorf("unexpected defaults: %+v", q)
	}
	if _, err := ParseRowQuery("rejected", "", ""); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for unknown filter, got %v", err)
	}
	if _, err := ParseRowQuery("all", "", "oldest"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for unknown sort, got %v", err)
	}
}

package review

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/signpost/signpost/internal/domain/symptom"
)

type Filter string

const (
	FilterPending          Filter = "pending"
	FilterChangesRequested Filter = "changes-requested"
	FilterApproved         Filter = "approved"
	FilterAll              Filter = "all"
)

type SortKey string

const (
	SortNameAsc    SortKey = "name-asc"
	SortNameDesc   SortKey = "name-desc"
	SortChangedNew SortKey = "changed-new"
	SortStatus     SortKey = "status"
)

type RowQuery struct {
	Filter Filter
	Search string
	Sort   SortKey
}

// ParseRowQuery applies defaults (pending, name-asc) and rejects unknown
// filter or sort values.
func ParseRowQuery(filter, search, sortKey string) (RowQuery, error) {
	q := RowQuery{Filter: FilterPending, Search: search, Sort: SortNameAsc}
	if filter != "" {
		switch f := Filter(filter); f {
		case FilterPending, FilterChangesRequested, FilterApproved, FilterAll:
			q.Filter = f
		default:
			return q, fmt.Errorf("%w: unknown filter %q", ErrInvalidRequest, filter)
		}
	}
	if sortKey != "" {
		switch s := SortKey(sortKey); s {
		case SortNameAsc, SortNameDesc, SortChangedNew, SortStatus:
			q.Sort = s
		default:
			return q, fmt.Errorf("%w: unknown sort %q", ErrInvalidRequest, sortKey)
		}
	}
	return q, nil
}

func (f Filter) matches(st Status) bool {
	switch f {
	case FilterAll, "":
		return true
	case FilterPending:
		return st == StatusPending
	case FilterChangesRequested:
		return st == StatusChangesRequired
	case FilterApproved:
		return st == StatusApproved
	}
	return false
}

type Row struct {
	Symptom      symptom.EffectiveSymptom `json:"symptom"`
	Status       Status                   `json:"status"`
	ReviewState  State                    `json:"reviewState"`
	ReviewStatus *ReviewStatus            `json:"reviewStatus,omitempty"`
}

var statusRank = map[Status]int{
	StatusPending:         0,
	StatusChangesRequired: 1,
	StatusApproved:        2,
}

// ResolveRows pairs each symptom with its resolved status, then filters,
// searches and sorts. Sorting is stable: equal rows keep symptom order.
func ResolveRows(symptoms []symptom.EffectiveSymptom, statuses StatusMap, q RowQuery) []Row {
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	rows := make([]Row, 0, len(symptoms))
	for _, s := range symptoms {
		st, state, rs := statuses.Resolve(s.Key())
		if !q.Filter.matches(st) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(s.Name), needle) {
			continue
		}
		rows = append(rows, Row{Symptom: s, Status: st, ReviewState: state, ReviewStatus: rs})
	}

	var less func(a, b Row) bool
	switch q.Sort {
	case SortNameDesc:
		less = func(a, b Row) bool { return strings.ToLower(a.Symptom.Name) > strings.ToLower(b.Symptom.Name) }
	case SortChangedNew:
		less = func(a, b Row) bool {
			at, bt := reviewedAt(a), reviewedAt(b)
			if at == nil || bt == nil {
				return at != nil && bt == nil
			}
			return at.After(*bt)
		}
	case SortStatus:
		less = func(a, b Row) bool { return statusRank[a.Status] < statusRank[b.Status] }
	default:
		less = func(a, b Row) bool { return strings.ToLower(a.Symptom.Name) < strings.ToLower(b.Symptom.Name) }
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	return rows
}

func reviewedAt(r Row) *time.Time {
	if r.ReviewStatus == nil {
		return nil
	}
	return r.ReviewStatus.LastReviewedAt
}

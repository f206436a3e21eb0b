package query

import (
	"sort"
	"strings"

	"github.com/rcabrera/citewatch/internal/models"
)

// Page size bounds. Out-of-range requests are clamped, not rejected.
const (
	MinPageSize = 1
	MaxPageSize = 100
)

// Sortable keys understood by Paginate.
const (
	SortByCreatedAt       = "createdAt"
	SortByFineAmount      = "fineAmount"
	SortByName            = "name"
	SortByViolationNumber = "violationNumber"
	SortByDueDate         = "dueDate"
)

// PageParams selects the ordering and slice of a filtered candidate set.
// Zero values fall back to createdAt descending, page 1.
type PageParams struct {
	SortKey    string
	Descending bool
	Page       int
	PageSize   int
}

// PageResult is one page of a deterministic ordering over the full
// post-filter candidate set. TotalRecords reflects the filtered count, not
// the store's raw count.
type PageResult struct {
	Items        []models.Violation `json:"items"`
	CurrentPage  int                `json:"currentPage"`
	TotalPages   int                `json:"totalPages"`
	TotalRecords int                `json:"totalRecords"`
}

// DefaultPageParams is the ordering used when the caller specifies nothing:
// newest first.
func DefaultPageParams() PageParams {
	return PageParams{SortKey: SortByCreatedAt, Descending: true, Page: 1, PageSize: 20}
}

// Paginate orders records by the requested key and slices the requested page.
// Sorting and slicing always happen here, in memory, over the full candidate
// set: once any non-equality predicate has been applied, a store-side limit
// would silently truncate the set before filtering completed.
//
// Ties are broken by store-assigned id descending, so repeated calls over the
// same snapshot produce identical pages.
func Paginate(records []models.Violation, params PageParams) PageResult {
	params = clamp(params)

	sorted := make([]models.Violation, len(records))
	copy(sorted, records)

	less := lessFunc(params.SortKey)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := &sorted[i], &sorted[j]
		if less(a, b) {
			return !params.Descending
		}
		if less(b, a) {
			return params.Descending
		}
		return a.ID > b.ID
	})

	total := len(sorted)
	totalPages := (total + params.PageSize - 1) / params.PageSize

	start := (params.Page - 1) * params.PageSize
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}

	return PageResult{
		Items:        sorted[start:end],
		CurrentPage:  params.Page,
		TotalPages:   totalPages,
		TotalRecords: total,
	}
}

// clamp normalizes caller-supplied paging values to the nearest valid ones.
func clamp(p PageParams) PageParams {
	if p.SortKey == "" {
		p.SortKey = SortByCreatedAt
		p.Descending = true
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < MinPageSize {
		p.PageSize = MinPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// lessFunc returns the ascending comparator for a sort key. Unknown keys fall
// back to creation time.
func lessFunc(key string) func(a, b *models.Violation) bool {
	switch key {
	case SortByFineAmount:
		return func(a, b *models.Violation) bool { return a.FineAmount < b.FineAmount }
	case SortByName:
		return func(a, b *models.Violation) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case SortByViolationNumber:
		return func(a, b *models.Violation) bool { return a.ViolationNumber < b.ViolationNumber }
	case SortByDueDate:
		return func(a, b *models.Violation) bool {
			switch {
			case a.DueDate == nil:
				return b.DueDate != nil
			case b.DueDate == nil:
				return false
			default:
				return a.DueDate.Before(*b.DueDate)
			}
		}
	default:
		return func(a, b *models.Violation) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

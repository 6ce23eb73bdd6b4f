package query

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidArgument rejects malformed filter specs and non-positive page
// sizes before any evaluation happens.
var ErrInvalidArgument = errors.New("invalid query argument")

// Spec maps a field name to a predicate value. Predicates combine with AND;
// an empty value matches everything for that field.
type Spec map[string]string

type Page[T any] struct {
	Items         []T `json:"items"`
	TotalMatching int `json:"total_matching"`
	PageIndex     int `json:"page_index"`
	PageSize      int `json:"page_size"`
}

// Aggregates are computed over the filtered set, never the page.
type Aggregates struct {
	Counts  map[string]map[string]int            `json:"counts,omitempty"`
	Rates   map[string]float64                   `json:"rates,omitempty"`
	Buckets map[string]map[string]map[string]int `json:"buckets,omitempty"`
}

type matcher[T any] func(record T) bool

// Schema is the declarative field-semantics table for one collection type.
// It fixes which spec fields exist and how each one matches, so every view
// shares the same engine instead of re-deriving filter logic.
type Schema[T any] struct {
	fields    map[string]func(value string) (matcher[T], error)
	counts    map[string]func(T) string
	rates     map[string]func(T) bool
	buckets   map[string]bucket[T]
	sortables map[string]func(a, b T) bool
}

type bucket[T any] struct {
	key func(T) string
	dim func(T) string
}

func NewSchema[T any]() *Schema[T] {
	return &Schema[T]{
		fields:    make(map[string]func(string) (matcher[T], error)),
		counts:    make(map[string]func(T) string),
		rates:     make(map[string]func(T) bool),
		buckets:   make(map[string]bucket[T]),
		sortables: make(map[string]func(a, b T) bool),
	}
}

// Exact registers an equality field.
func (s *Schema[T]) Exact(name string, get func(T) string) *Schema[T] {
	s.fields[name] = func(value string) (matcher[T], error) {
		return func(record T) bool { return get(record) == value }, nil
	}
	return s
}

// Bool registers an equality field over "true"/"false" values.
func (s *Schema[T]) Bool(name string, get func(T) bool) *Schema[T] {
	s.fields[name] = func(value string) (matcher[T], error) {
		want, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q wants true or false, got %q", ErrInvalidArgument, name, value)
		}
		return func(record T) bool { return get(record) == want }, nil
	}
	return s
}

// Contains registers a case-sensitive substring field.
func (s *Schema[T]) Contains(name string, get func(T) string) *Schema[T] {
	s.fields[name] = func(value string) (matcher[T], error) {
		return func(record T) bool { return strings.Contains(get(record), value) }, nil
	}
	return s
}

// DateRange registers the startDate/endDate pair as inclusive bounds over the
// record timestamp, with endDate promoted to the end of its day.
func (s *Schema[T]) DateRange(startName, endName string, get func(T) time.Time) *Schema[T] {
	s.fields[startName] = func(value string) (matcher[T], error) {
		bound, err := parseDate(startName, value)
		if err != nil {
			return nil, err
		}
		return func(record T) bool { return !get(record).Before(bound) }, nil
	}
	s.fields[endName] = func(value string) (matcher[T], error) {
		bound, err := parseDate(endName, value)
		if err != nil {
			return nil, err
		}
		end := endOfDay(bound)
		return func(record T) bool { return !get(record).After(end) }, nil
	}
	return s
}

// Count registers a breakdown dimension for the aggregates.
func (s *Schema[T]) Count(name string, get func(T) string) *Schema[T] {
	s.counts[name] = get
	return s
}

// Rate registers a fraction-of-filtered-set aggregate.
func (s *Schema[T]) Rate(name string, predicate func(T) bool) *Schema[T] {
	s.rates[name] = predicate
	return s
}

// Bucket registers a two-level breakdown: records group into buckets (say a
// truncated date) and within each bucket count per dimension value.
func (s *Schema[T]) Bucket(name string, key func(T) string, dim func(T) string) *Schema[T] {
	s.buckets[name] = bucket[T]{key: key, dim: dim}
	return s
}

// Sortable registers a sort key selectable via the sortBy spec field.
func (s *Schema[T]) Sortable(name string, less func(a, b T) bool) *Schema[T] {
	s.sortables[name] = less
	return s
}

// Run filters, optionally sorts, and paginates records. Filtering runs over
// the full candidate set before pagination; an out-of-range page index yields
// empty items with the total still correct. Order is stable relative to the
// input sequence unless a sort key is given.
func Run[T any](records []T, schema *Schema[T], spec Spec, pageIndex, pageSize int) (Page[T], Aggregates, error) {
	if pageSize <= 0 {
		return Page[T]{}, Aggregates{}, fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidArgument, pageSize)
	}
	if pageIndex < 0 {
		return Page[T]{}, Aggregates{}, fmt.Errorf("%w: page index must be non-negative, got %d", ErrInvalidArgument, pageIndex)
	}

	matchers, sortBy, descending, err := schema.compile(spec)
	if err != nil {
		return Page[T]{}, Aggregates{}, err
	}

	filtered := make([]T, 0, len(records))
	for _, record := range records {
		if matchAll(record, matchers) {
			filtered = append(filtered, record)
		}
	}

	if sortBy != nil {
		sort.SliceStable(filtered, func(i, j int) bool {
			if descending {
				return sortBy(filtered[j], filtered[i])
			}
			return sortBy(filtered[i], filtered[j])
		})
	}

	page := Page[T]{
		Items:         paginate(filtered, pageIndex, pageSize),
		TotalMatching: len(filtered),
		PageIndex:     pageIndex,
		PageSize:      pageSize,
	}
	return page, schema.aggregate(filtered), nil
}

// Aggregate computes the derived aggregates over the filtered set without
// materializing a page; the statistics views use it directly.
func Aggregate[T any](records []T, schema *Schema[T], spec Spec) (Aggregates, int, error) {
	matchers, _, _, err := schema.compile(spec)
	if err != nil {
		return Aggregates{}, 0, err
	}
	filtered := make([]T, 0, len(records))
	for _, record := range records {
		if matchAll(record, matchers) {
			filtered = append(filtered, record)
		}
	}
	return schema.aggregate(filtered), len(filtered), nil
}

func (s *Schema[T]) compile(spec Spec) ([]matcher[T], func(a, b T) bool, bool, error) {
	matchers := make([]matcher[T], 0, len(spec))
	var sortBy func(a, b T) bool
	descending := false
	for name, value := range spec {
		if value == "" {
			continue
		}
		switch name {
		case "sortBy":
			less, ok := s.sortables[value]
			if !ok {
				return nil, nil, false, fmt.Errorf("%w: unknown sort key %q", ErrInvalidArgument, value)
			}
			sortBy = less
			continue
		case "sortOrder":
			switch value {
			case "asc":
			case "desc":
				descending = true
			default:
				return nil, nil, false, fmt.Errorf("%w: sort order must be asc or desc, got %q", ErrInvalidArgument, value)
			}
			continue
		}
		build, ok := s.fields[name]
		if !ok {
			return nil, nil, false, fmt.Errorf("%w: unknown filter field %q", ErrInvalidArgument, name)
		}
		m, err := build(value)
		if err != nil {
			return nil, nil, false, err
		}
		matchers = append(matchers, m)
	}
	return matchers, sortBy, descending, nil
}

func (s *Schema[T]) aggregate(filtered []T) Aggregates {
	agg := Aggregates{}
	if len(s.counts) > 0 {
		agg.Counts = make(map[string]map[string]int, len(s.counts))
		for name, get := range s.counts {
			breakdown := make(map[string]int)
			for _, record := range filtered {
				if key := get(record); key != "" {
					breakdown[key]++
				}
			}
			agg.Counts[name] = breakdown
		}
	}
	if len(s.rates) > 0 {
		agg.Rates = make(map[string]float64, len(s.rates))
		for name, predicate := range s.rates {
			matched := 0
			for _, record := range filtered {
				if predicate(record) {
					matched++
				}
			}
			rate := 0.0
			if len(filtered) > 0 {
				rate = float64(matched) / float64(len(filtered))
			}
			agg.Rates[name] = rate
		}
	}
	if len(s.buckets) > 0 {
		agg.Buckets = make(map[string]map[string]map[string]int, len(s.buckets))
		for name, b := range s.buckets {
			grouped := make(map[string]map[string]int)
			for _, record := range filtered {
				key := b.key(record)
				if key == "" {
					continue
				}
				dims, ok := grouped[key]
				if !ok {
					dims = make(map[string]int)
					grouped[key] = dims
				}
				dims[b.dim(record)]++
			}
			agg.Buckets[name] = grouped
		}
	}
	return agg
}

func matchAll[T any](record T, matchers []matcher[T]) bool {
	for _, m := range matchers {
		if !m(record) {
			return false
		}
	}
	return true
}

func paginate[T any](filtered []T, pageIndex, pageSize int) []T {
	// Compare before multiplying so a huge page index cannot overflow.
	if len(filtered) == 0 || pageIndex > (len(filtered)-1)/pageSize {
		return []T{}
	}
	start := pageIndex * pageSize
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	out := make([]T, end-start)
	copy(out, filtered[start:end])
	return out
}

var dateLayouts = []string{"2006-01-02", time.RFC3339Nano, time.RFC3339}

func parseDate(field, value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: field %q wants a date, got %q", ErrInvalidArgument, field, value)
}

func endOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

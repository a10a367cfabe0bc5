// Package stats turns accreditation records into time-bucketed counts for
// charts and the history table.
package stats

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"accredit-dashboard/internal/core/domain"
)

// Granularity selects the bucket width
type Granularity string

const (
	Monthly   Granularity = "monthly"
	Quarterly Granularity = "quarterly"
	Yearly    Granularity = "yearly"
)

var ErrInvalidGranularity = errors.New("granularity must be monthly, quarterly or yearly")

// ParseGranularity reads a query value; empty defaults to monthly
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return Monthly, nil
	case Monthly, Quarterly, Yearly:
		return g, nil
	}
	return "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, ErrInvalidGranularity)
}

// Unit is the title suffix shown next to charts ("Month", "Quarter", "Year")
func (g Granularity) Unit() string {
	switch g {
	case Quarterly:
		return "Quarter"
	case Yearly:
		return "Year"
	default:
		return "Month"
	}
}

// Bucket is one named time window. HasData is false when no record fell in it.
type Bucket struct {
	Name    string         `json:"name"`
	HasData bool           `json:"hasData"`
	Counts  map[string]int `json:"counts"`
}

// Total sums the counts across all grouping keys
func (b Bucket) Total() int {
	total := 0
	for _, n := range b.Counts {
		total += n
	}
	return total
}

// SkipReason explains why a received record was left out of the buckets
type SkipReason string

const (
	SkipMissingDate  SkipReason = "missing_date"
	SkipInvalidDate  SkipReason = "invalid_date"
	SkipInvalidLevel SkipReason = "invalid_level"
)

type Skip struct {
	RecordID domain.RecordID `json:"recordId"`
	Reason   SkipReason      `json:"reason"`
	Value    string          `json:"value,omitempty"`
}

// Result is the aggregation output for one kind, granularity and year
type Result struct {
	Granularity Granularity `json:"granularity"`
	Year        int         `json:"year,omitempty"`
	Buckets     []Bucket    `json:"buckets"`
	Keys        []string    `json:"keys"`
	Skipped     []Skip      `json:"skipped"`
}

// entry is a received record that passed date and key checks
type entry struct {
	at  time.Time
	key string
}

// Aggregate buckets the received records by receipt date.
//
// Monthly yields twelve buckets and quarterly four, all for year, including
// empty ones. Yearly yields one bucket per year present, ascending, and
// ignores year. Records that are not received never count. Received records
// with a missing or unreadable receipt date, or without a usable grouping
// key, are listed in Result.Skipped.
func Aggregate[R domain.Accreditable](records []R, g Granularity, year int, loc *time.Location) (*Result, error) {
	switch g {
	case Monthly, Quarterly:
		if year <= 0 {
			return nil, domain.NewValidationError("year", "Year is required for "+string(g)+" statistics")
		}
	case Yearly:
		year = 0
	default:
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, ErrInvalidGranularity)
	}

	entries, skipped := collect(records, loc)

	var buckets []Bucket
	switch g {
	case Monthly:
		buckets = make([]Bucket, 12)
		for i := range buckets {
			buckets[i] = Bucket{Name: time.Month(i + 1).String(), Counts: map[string]int{}}
		}
		for _, e := range entries {
			if e.at.Year() == year {
				buckets[int(e.at.Month())-1].add(e.key)
			}
		}
	case Quarterly:
		buckets = make([]Bucket, 4)
		for i := range buckets {
			buckets[i] = Bucket{Name: "Q" + strconv.Itoa(i+1), Counts: map[string]int{}}
		}
		for _, e := range entries {
			if e.at.Year() == year {
				buckets[(int(e.at.Month())-1)/3].add(e.key)
			}
		}
	case Yearly:
		byYear := map[int]*Bucket{}
		for _, e := range entries {
			b, ok := byYear[e.at.Year()]
			if !ok {
				b = &Bucket{Name: strconv.Itoa(e.at.Year()), Counts: map[string]int{}}
				byYear[e.at.Year()] = b
			}
			b.add(e.key)
		}
		years := make([]int, 0, len(byYear))
		for y := range byYear {
			years = append(years, y)
		}
		sort.Ints(years)
		buckets = make([]Bucket, 0, len(years))
		for _, y := range years {
			buckets = append(buckets, *byYear[y])
		}
	}

	return &Result{
		Granularity: g,
		Year:        year,
		Buckets:     buckets,
		Keys:        keysOf(buckets),
		Skipped:     skipped,
	}, nil
}

// Years lists the distinct receipt years of received records, ascending
func Years[R domain.Accreditable](records []R, loc *time.Location) []int {
	entries, _ := collect(records, loc)
	seen := map[int]bool{}
	years := []int{}
	for _, e := range entries {
		if !seen[e.at.Year()] {
			seen[e.at.Year()] = true
			years = append(years, e.at.Year())
		}
	}
	sort.Ints(years)
	return years
}

func collect[R domain.Accreditable](records []R, loc *time.Location) ([]entry, []Skip) {
	if loc == nil {
		loc = time.UTC
	}
	entries := make([]entry, 0, len(records))
	skipped := []Skip{}

	for _, r := range records {
		base := r.Base()
		if !base.Status.IsReceived() {
			continue
		}
		switch {
		case base.ReceivedDate.Malformed():
			skipped = append(skipped, Skip{RecordID: base.ID, Reason: SkipInvalidDate, Value: base.ReceivedDate.Raw})
			continue
		case !base.ReceivedDate.Valid:
			skipped = append(skipped, Skip{RecordID: base.ID, Reason: SkipMissingDate})
			continue
		}
		key, err := r.GroupKey()
		if err != nil {
			skipped = append(skipped, Skip{RecordID: base.ID, Reason: SkipInvalidLevel, Value: r.Category()})
			continue
		}
		entries = append(entries, entry{at: base.ReceivedDate.Time.In(loc), key: key})
	}
	return entries, skipped
}

func (b *Bucket) add(key string) {
	b.Counts[key]++
	b.HasData = true
}

func keysOf(buckets []Bucket) []string {
	set := map[string]struct{}{}
	for _, b := range buckets {
		for k := range b.Counts {
			set[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

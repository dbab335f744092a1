// Package dashboard computes the summary figures shown on the home screen.
package dashboard

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/entitykeeper/internal/client/models"
	"github.com/dmitrijs2005/entitykeeper/internal/common"
)

// Period narrows the entities counted by creation time.
type Period string

const (
	Today Period = "today"
	Week  Period = "week"
	Month Period = "month"
	Year  Period = "year"
	All   Period = "all"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return All, nil
	case Today, Week, Month, Year, All:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown period %q", common.ErrValidation, s)
	}
}

type ValueCount struct {
	Value string
	Count int
}

// ColumnStat counts the values of one custom column across entities.
type ColumnStat struct {
	Name   string
	Values []ValueCount
}

type Bucket struct {
	Label string
	Start time.Time
	Count int
}

type Summary struct {
	Period        Period
	Total         int
	Filtered      int
	CreatedToday  int
	ModifiedToday int
	Columns       []ColumnStat
	Timeline      []Bucket
}

// Summarize counts entities as of now. Column statistics cover every entity;
// the timeline covers those created within the period.
func Summarize(entities []models.Entity, p Period, now time.Time) Summary {
	s := Summary{Period: p, Total: len(entities), Columns: columnStats(entities)}

	today := startOfDay(now)
	for _, e := range entities {
		if e.CreatedDate != nil && sameDay(e.CreatedDate.In(now.Location()), today) {
			s.CreatedToday++
		}
		if e.LastModifiedDate != nil && sameDay(e.LastModifiedDate.In(now.Location()), today) {
			s.ModifiedToday++
		}
	}

	filtered := Filter(entities, p, now)
	s.Filtered = len(filtered)
	s.Timeline = timeline(filtered, p, now)
	return s
}

// Filter keeps the entities created within p of now.
func Filter(entities []models.Entity, p Period, now time.Time) []models.Entity {
	if p == All || p == "" {
		return entities
	}
	from := cutoff(p, now)
	out := make([]models.Entity, 0, len(entities))
	for _, e := range entities {
		if e.CreatedDate != nil && !e.CreatedDate.Before(from) {
			out = append(out, e)
		}
	}
	return out
}

func cutoff(p Period, now time.Time) time.Time {
	switch p {
	case Today:
		return startOfDay(now)
	case Week:
		return now.AddDate(0, 0, -7)
	case Month:
		return now.AddDate(0, -1, 0)
	case Year:
		return now.AddDate(-1, 0, 0)
	default:
		return time.Time{}
	}
}

func columnStats(entities []models.Entity) []ColumnStat {
	counts := map[string]map[string]int{}
	for _, e := range entities {
		for _, c := range e.CustomColumns {
			if c.Name == "" {
				continue
			}
			if counts[c.Name] == nil {
				counts[c.Name] = map[string]int{}
			}
			if c.Value != "" {
				counts[c.Name][c.Value]++
			}
		}
	}

	stats := make([]ColumnStat, 0, len(counts))
	for name, values := range counts {
		st := ColumnStat{Name: name, Values: make([]ValueCount, 0, len(values))}
		for v, n := range values {
			st.Values = append(st.Values, ValueCount{Value: v, Count: n})
		}
		slices.SortFunc(st.Values, func(a, b ValueCount) int {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
			return strings.Compare(a.Value, b.Value)
		})
		stats = append(stats, st)
	}
	slices.SortFunc(stats, func(a, b ColumnStat) int { return strings.Compare(a.Name, b.Name) })
	return stats
}

// timeline builds empty buckets for the period and drops each entity into
// the one its creation time falls in.
func timeline(entities []models.Entity, p Period, now time.Time) []Bucket {
	loc := now.Location()
	var buckets []Bucket

	switch p {
	case Today:
		day := startOfDay(now)
		for h := 0; h < 24; h++ {
			buckets = append(buckets, Bucket{Label: fmt.Sprintf("%d:00", h), Start: day.Add(time.Duration(h) * time.Hour)})
		}
	case Week, Month:
		n := 7
		if p == Month {
			n = 30
		}
		day := startOfDay(now).AddDate(0, 0, -(n - 1))
		for i := 0; i < n; i++ {
			d := day.AddDate(0, 0, i)
			label := d.Format("Mon")
			if p == Month {
				label = d.Format("1/2")
			}
			buckets = append(buckets, Bucket{Label: label, Start: d})
		}
	case Year:
		month := startOfMonth(now).AddDate(0, -11, 0)
		for i := 0; i < 12; i++ {
			m := month.AddDate(0, i, 0)
			buckets = append(buckets, Bucket{Label: m.Format("Jan"), Start: m})
		}
	default:
		seen := map[time.Time]bool{}
		for _, e := range entities {
			if e.CreatedDate == nil {
				continue
			}
			m := startOfMonth(e.CreatedDate.In(loc))
			if !seen[m] {
				seen[m] = true
				buckets = append(buckets, Bucket{Label: m.Format("Jan 2006"), Start: m})
			}
		}
		slices.SortFunc(buckets, func(a, b Bucket) int { return a.Start.Compare(b.Start) })
	}

	for _, e := range entities {
		if e.CreatedDate == nil {
			continue
		}
		t := e.CreatedDate.In(loc)
		// buckets are ascending; the last one starting at or before t wins
		i, found := slices.BinarySearchFunc(buckets, t, func(b Bucket, t time.Time) int { return b.Start.Compare(t) })
		if !found {
			i--
		}
		if i >= 0 && i < len(buckets) {
			buckets[i].Count++
		}
	}
	return buckets
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

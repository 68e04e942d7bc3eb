package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxTimelineBuckets caps the number of buckets Timeline returns.
const MaxTimelineBuckets = 10

const (
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// Granularity selects how the timeline labels its buckets.
type Granularity string

// ParseGranularity maps user input to a granularity. Anything unknown is Month.
func ParseGranularity(s string) Granularity {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Week, Year:
		return g
	default:
		return Month
	}
}

func (g Granularity) String() string {
	return string(g)
}

// TimelineBucket holds the income and expense totals for one label.
type TimelineBucket struct {
	Key     string
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Calendar controls how bucket labels are rendered.
type Calendar struct {
	Location *time.Location
	// DayMonths are used after a day number ("5 мая").
	DayMonths [12]string
	// Months are used in month+year labels ("май 2025 г.").
	Months     [12]string
	YearSuffix string
}

// RussianCalendar renders labels the way ru-RU short dates read.
func RussianCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{
		Location:   loc,
		DayMonths:  [12]string{"янв.", "февр.", "мар.", "апр.", "мая", "июн.", "июл.", "авг.", "сент.", "окт.", "нояб.", "дек."},
		Months:     [12]string{"янв.", "февр.", "март", "апр.", "май", "июнь", "июль", "авг.", "сент.", "окт.", "нояб.", "дек."},
		YearSuffix: " г.",
	}
}

// Label returns the bucket key for t. Year granularity yields month+year;
// week and month both yield day+month without the year.
func (c Calendar) Label(t time.Time, g Granularity) string {
	if c.Location != nil {
		t = t.In(c.Location)
	}
	y, m, d := t.Date()
	if g == Year {
		return fmt.Sprintf("%s %d%s", c.Months[m-1], y, c.YearSuffix)
	}
	return fmt.Sprintf("%d %s", d, c.DayMonths[m-1])
}

// Timeline buckets transactions chronologically using the local Russian calendar.
func Timeline(txs []Transaction, g Granularity) []TimelineBucket {
	return TimelineWith(txs, g, RussianCalendar(time.Local))
}

// TimelineWith buckets transactions by label in chronological order and
// keeps only the most recent MaxTimelineBuckets labels.
//
// Day-level labels carry no year, so the same day of different years lands
// in one bucket. No range relative to the current date is applied.
func TimelineWith(txs []Transaction, g Granularity, cal Calendar) []TimelineBucket {
	sorted := make([]Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	index := make(map[string]int)
	buckets := make([]TimelineBucket, 0)
	for _, tx := range sorted {
		key := cal.Label(tx.Date, g)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, TimelineBucket{Key: key, Income: decimal.Zero, Expense: decimal.Zero})
		}
		switch tx.Type {
		case Income:
			buckets[i].Income = buckets[i].Income.Add(tx.Amount)
		case Expense:
			buckets[i].Expense = buckets[i].Expense.Add(tx.Amount)
		}
	}

	if len(buckets) > MaxTimelineBuckets {
		buckets = buckets[len(buckets)-MaxTimelineBuckets:]
	}
	return buckets
}

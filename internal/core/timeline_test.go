package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTimelineLabels(t *testing.T) {
	cal := RussianCalendar(time.UTC)
	d := day(2025, 5, 5)
	if got := cal.Label(d, Month); got != "5 мая" {
		t.Fatalf("month label = %q", got)
	}
	if got := cal.Label(d, Week); got != "5 мая" {
		t.Fatalf("week label = %q", got)
	}
	if got := cal.Label(d, Year); got != "май 2025 г." {
		t.Fatalf("year label = %q", got)
	}
}

func TestParseGranularity(t *testing.T) {
	cases := map[string]Granularity{"week": Week, "YEAR": Year, "month": Month, "": Month, "decade": Month}
	for in, want := range cases {
		if got := ParseGranularity(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestTimelineChronologicalAndConserved(t *testing.T) {
	cal := RussianCalendar(time.UTC)
	// Stored newest first, like the ledger does.
	l := []Transaction{
		tx(Expense, 3500, "Fun", day(2025, 1, 3)),
		tx(Expense, 1200, "Food", day(2025, 1, 2)),
		tx(Income, 500, "Gift", day(2025, 1, 2)),
		tx(Income, 85000, "Salary", day(2025, 1, 1)),
	}
	got := TimelineWith(l, Month, cal)
	want := []string{"1 янв.", "2 янв.", "3 янв."}
	if len(got) != len(want) {
		t.Fatalf("got %d buckets: %+v", len(got), got)
	}
	for i, b := range got {
		if b.Key != want[i] {
			t.Fatalf("bucket %d key %q, want %q", i, b.Key, want[i])
		}
	}
	if !got[1].Income.Equal(decimal.NewFromInt(500)) || !got[1].Expense.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("bucket 1 = %+v", got[1])
	}

	s := Summarize(l)
	inc, exp := decimal.Zero, decimal.Zero
	for _, b := range got {
		inc = inc.Add(b.Income)
		exp = exp.Add(b.Expense)
	}
	if !inc.Equal(s.TotalIncome) || !exp.Equal(s.TotalExpense) {
		t.Fatalf("conservation broken: %s/%s vs %s/%s", inc, exp, s.TotalIncome, s.TotalExpense)
	}
}

func TestTimelineKeepsLastTen(t *testing.T) {
	cal := RussianCalendar(time.UTC)
	var l []Transaction
	for i := 1; i <= 15; i++ {
		l = append(l, tx(Expense, int64(i), "x", day(2025, 3, i)))
	}
	got := TimelineWith(l, Week, cal)
	if len(got) != MaxTimelineBuckets {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Key != "6 мар." || got[9].Key != "15 мар." {
		t.Fatalf("window = %q..%q", got[0].Key, got[9].Key)
	}
}

func TestTimelineYearGranularity(t *testing.T) {
	cal := RussianCalendar(time.UTC)
	l := []Transaction{
		tx(Expense, 10, "a", day(2025, 1, 5)),
		tx(Expense, 20, "a", day(2025, 1, 25)),
		tx(Income, 100, "b", day(2025, 2, 1)),
	}
	got := TimelineWith(l, Year, cal)
	if len(got) != 2 || got[0].Key != "янв. 2025 г." || got[1].Key != "февр. 2025 г." {
		t.Fatalf("unexpected buckets %+v", got)
	}
	if !got[0].Expense.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("january expense = %s", got[0].Expense)
	}
}

func TestTimelineMergesSameDayAcrossYears(t *testing.T) {
	cal := RussianCalendar(time.UTC)
	l := []Transaction{
		tx(Expense, 10, "a", day(2024, 3, 1)),
		tx(Expense, 5, "a", day(2024, 6, 1)),
		tx(Expense, 20, "a", day(2025, 3, 1)),
	}
	got := TimelineWith(l, Month, cal)
	if len(got) != 2 {
		t.Fatalf("expected merged buckets, got %+v", got)
	}
	if got[0].Key != "1 мар." || !got[0].Expense.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("first bucket %+v", got[0])
	}
}

func TestTimelineEmpty(t *testing.T) {
	if got := Timeline(nil, Month); len(got) != 0 {
		t.Fatalf("expected no buckets, got %+v", got)
	}
}

package series

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func bar(t time.Time, o, h, l, c float64) Bar {
	return Bar{Time: t, Open: o, High: h, Low: l, Close: c}
}

func stamped(n int, step time.Duration) []Bar {
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	out := make([]Bar, n)
	for i := range out {
		out[i] = bar(base.Add(time.Duration(i)*step), 10, 11, 9, 10.5)
	}
	return out
}

func TestNewValidation(t *testing.T) {
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		if _, err := New(nil); !errors.Is(err, ErrEmpty) {
			t.Errorf("err = %v, want ErrEmpty", err)
		}
	})

	t.Run("out of order", func(t *testing.T) {
		bars := []Bar{
			bar(base.Add(time.Minute), 10, 11, 9, 10),
			bar(base, 10, 11, 9, 10),
		}
		if _, err := New(bars); !errors.Is(err, ErrOutOfOrder) {
			t.Errorf("err = %v, want ErrOutOfOrder", err)
		}
	})

	t.Run("duplicate timestamp", func(t *testing.T) {
		bars := []Bar{
			bar(base, 10, 11, 9, 10),
			bar(base, 10, 11, 9, 10),
		}
		if _, err := New(bars); !errors.Is(err, ErrOutOfOrder) {
			t.Errorf("err = %v, want ErrOutOfOrder", err)
		}
	})

	t.Run("high below body", func(t *testing.T) {
		bars := []Bar{bar(base, 10, 9.5, 9, 10)}
		if _, err := New(bars); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("err = %v, want ErrInvalidRange", err)
		}
	})

	t.Run("valid", func(t *testing.T) {
		s, err := New(stamped(5, time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if s.Len() != 5 {
			t.Errorf("len = %d, want 5", s.Len())
		}
	})
}

func TestBarGeometry(t *testing.T) {
	b := Bar{Open: 10, High: 12, Low: 8, Close: 11}
	if b.Body() != 1 || b.Range() != 4 {
		t.Errorf("body/range = %v/%v, want 1/4", b.Body(), b.Range())
	}
	if !b.Bullish() || b.Bearish() {
		t.Error("color misclassified")
	}
	if b.LowerWick() != 2 || b.UpperWick() != 1 {
		t.Errorf("wicks = %v/%v, want 2/1", b.LowerWick(), b.UpperWick())
	}
}

func TestIndexLookup(t *testing.T) {
	s, err := New(stamped(10, time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	base := s.Time(0)

	if got := s.IndexAtOrBefore(base.Add(3*time.Minute + 30*time.Second)); got != 3 {
		t.Errorf("IndexAtOrBefore mid bar = %d, want 3", got)
	}
	if got := s.IndexAtOrBefore(base.Add(-time.Second)); got != -1 {
		t.Errorf("IndexAtOrBefore before start = %d, want -1", got)
	}
	if got := s.IndexAfter(base.Add(8 * time.Minute)); got != 9 {
		t.Errorf("IndexAfter = %d, want 9", got)
	}
	if got := s.IndexAfter(base.Add(time.Hour)); got != s.Len() {
		t.Errorf("IndexAfter past end = %d, want len", got)
	}
}

func TestPrefixSharesData(t *testing.T) {
	s, err := New(stamped(10, time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	p := s.Prefix(4)
	if p.Len() != 4 {
		t.Fatalf("prefix len = %d, want 4", p.Len())
	}
	for i := 0; i < 4; i++ {
		if p.At(i) != s.At(i) {
			t.Errorf("bar %d differs between prefix and parent", i)
		}
	}
}

func TestAggregate(t *testing.T) {
	// Twelve 5m bars spanning one hour with a varied shape.
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	bars := make([]Bar, 12)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = bar(base.Add(time.Duration(i)*5*time.Minute), p, p+2, p-2, p+1)
	}
	s, err := New(bars)
	if err != nil {
		t.Fatal(err)
	}

	agg, err := Aggregate(s, TF15m)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Len() != 4 {
		t.Fatalf("aggregated len = %d, want 4", agg.Len())
	}

	// First bucket holds bars 0..2.
	if agg.Open(0) != 100 || agg.Close(0) != 103 {
		t.Errorf("bucket 0 open/close = %v/%v, want 100/103", agg.Open(0), agg.Close(0))
	}
	if agg.High(0) != 104 || agg.Low(0) != 98 {
		t.Errorf("bucket 0 high/low = %v/%v, want 104/98", agg.High(0), agg.Low(0))
	}
	if !agg.Time(0).Equal(base) {
		t.Errorf("bucket 0 time = %v, want %v", agg.Time(0), base)
	}
}

func TestAggregatePreservesGaps(t *testing.T) {
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	bars := []Bar{
		bar(base, 10, 11, 9, 10),
		bar(base.Add(5*time.Minute), 10, 11, 9, 10),
		// 45 minute hole, e.g. a feed outage
		bar(base.Add(50*time.Minute), 10, 11, 9, 10),
	}
	s, err := New(bars)
	if err != nil {
		t.Fatal(err)
	}
	agg, err := Aggregate(s, TF15m)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Len() != 2 {
		t.Fatalf("aggregated len = %d, want 2 (empty buckets absent)", agg.Len())
	}
	if !agg.Time(1).Equal(base.Add(45 * time.Minute)) {
		t.Errorf("second bucket at %v, want %v", agg.Time(1), base.Add(45*time.Minute))
	}
}

func TestPreviousDayLevels(t *testing.T) {
	day := 24 * time.Hour
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	daily, err := New([]Bar{
		bar(base, 100, 110, 95, 105),
		bar(base.Add(day), 105, 120, 102, 118),
		bar(base.Add(2*day), 118, 125, 115, 121),
	})
	if err != nil {
		t.Fatal(err)
	}

	pdh, pdl, ok := PreviousDayLevels(daily, base.Add(2*day).Add(3*time.Hour))
	if !ok {
		t.Fatal("no levels found")
	}
	if pdh != 120 || pdl != 102 {
		t.Errorf("pdh/pdl = %v/%v, want 120/102", pdh, pdl)
	}

	if _, _, ok := PreviousDayLevels(daily, base.Add(6*time.Hour)); ok {
		t.Error("levels reported with no completed prior day")
	}
}

func TestReadCSV(t *testing.T) {
	data := `time,open,high,low,close,volume
2024-03-04T09:00:00Z,100,101,99,100.5,1200
2024-03-04T09:05:00Z,100.5,102,100,101.5,900
`
	s, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if s.Close(1) != 101.5 || s.Volume(0) != 1200 {
		t.Errorf("parsed values wrong: close=%v volume=%v", s.Close(1), s.Volume(0))
	}
}

func TestReadCSVUnixTimes(t *testing.T) {
	data := "1709542800,100,101,99,100.5,0\n1709543100,100.5,102,100,101.5,0\n"
	s, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if !s.Time(0).Equal(time.Unix(1709542800, 0)) {
		t.Errorf("time = %v", s.Time(0))
	}
}

func TestReadCSVBadRow(t *testing.T) {
	data := "2024-03-04T09:00:00Z,100,abc,99,100.5,0\n"
	if _, err := ReadCSV(strings.NewReader(data)); err == nil {
		t.Fatal("malformed row accepted")
	}
}

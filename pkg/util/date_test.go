package util

import (
	"math"
	"reflect"
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeCalendarDate(t *testing.T) {
	for _, s := range []string{"2024-03-05", " 2024-03-05 ", "2024/03/05", "03/05/2024"} {
		got, ok := ParseTime(s)
		if !ok {
			t.Fatalf("expected %q to parse", s)
		}
		if !got.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected time %v for %q", got, s)
		}
	}
	if _, ok := ParseTime("not a date"); ok {
		t.Fatalf("expected failure")
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestCalendarDay(t *testing.T) {
	got := CalendarDay(time.Date(2024, 1, 2, 23, 59, 0, 0, time.UTC))
	if !got.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day %v", got)
	}
}

func TestParseFloatCell(t *testing.T) {
	if v := ParseFloatCell(" 21.5 "); v != 21.5 {
		t.Fatalf("unexpected %v", v)
	}
	if v := ParseFloatCell(""); !math.IsNaN(v) {
		t.Fatalf("blank cell should be NaN")
	}
	if v := ParseFloatCell("n/a"); !math.IsNaN(v) {
		t.Fatalf("non-numeric cell should be NaN")
	}
}

func TestSplitList(t *testing.T) {
	if got := SplitList(" a, b,,c "); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected %v", got)
	}
}

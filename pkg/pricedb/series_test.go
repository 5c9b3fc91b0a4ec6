package pricedb

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestGranularity_Truncate(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 535000000, time.UTC)

	cases := []struct {
		g    Granularity
		want time.Time
	}{
		{Minute, time.Date(2025, 3, 14, 15, 9, 0, 0, time.UTC)},
		{Hour, time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)},
		{Day, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := c.g.Truncate(ts); !got.Equal(c.want) {
			t.Errorf("%s: expected %s, got %s", c.g, c.want, got)
		}
	}
}

func TestGranularity_TruncateNormalizesZone(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	ts := time.Date(2025, 3, 14, 3, 30, 0, 0, loc) // 2025-03-13T20:30Z

	got := Day.Truncate(ts)
	want := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestShouldWrite(t *testing.T) {
	ten := decimal.NewFromInt(10)
	tenAgain := decimal.RequireFromString("10.000")
	eleven := decimal.NewFromInt(11)

	if !shouldWrite(nil, ten) {
		t.Error("first observation must always write")
	}
	if shouldWrite(&ten, tenAgain) {
		t.Error("equal value must be suppressed regardless of representation")
	}
	if !shouldWrite(&ten, eleven) {
		t.Error("changed value must write")
	}
}

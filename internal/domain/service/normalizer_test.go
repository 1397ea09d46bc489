package service

import (
	"testing"

	"fundingarb/internal/domain/model"
)

// TestNormalizeTable 测试各交易所的归一化规则
func TestNormalizeTable(t *testing.T) {
	cases := []struct {
		venue string
		raw   float64
		want  float64
	}{
		{model.VenueLighter, 0.0001, 0.0001},
		{model.VenueBinance, 0.0001, 0.0001},
		{model.VenueBackpack, 0.00001, 0.00008},
		{model.VenueHyperliquid, 0.0000125, 0.0001},
		{model.VenueEdgeX, 0.00005, 0.0001},
		{model.VenueGRVT, 0.01, 0.0001},
		{model.VenueVariational, 0.1095, 0.0001},
		{model.VenueEthereal, 0.00001, 0.00008},
		{model.VenueDYDX, 0.00001, 0.00008},
		{model.VenueNado, 0.0003, 0.0001},
	}
	for _, c := range cases {
		got := Normalize(c.raw, ConventionFor(c.venue))
		if !almostEqual(got, c.want) {
			t.Errorf("%s: Normalize(%v) = %v, want %v", c.venue, c.raw, got, c.want)
		}
	}
}

// TestPer8hInterval 测试按周期换算
func TestPer8hInterval(t *testing.T) {
	if got := Per8h(0.0001, 1); !almostEqual(got, 0.0008) {
		t.Errorf("1h: got %v", got)
	}
	if got := Per8h(0.0001, 4); !almostEqual(got, 0.0002) {
		t.Errorf("4h: got %v", got)
	}
	if got := Per8h(0.0001, 0); got != 0.0001 {
		t.Errorf("zero hours should be treated as 8h, got %v", got)
	}
	if got := FromAnnual(1.095); !almostEqual(got, 0.001) {
		t.Errorf("annual: got %v", got)
	}
}

// TestNormalizeIdempotentAt8h 8h 小数重复归一化结果不变
func TestNormalizeIdempotentAt8h(t *testing.T) {
	c := Convention{IntervalHours: 8}
	for _, r := range []float64{0, 0.0001, -0.00037, 0.25} {
		once := Normalize(r, c)
		if twice := Normalize(once, c); twice != once || once != r {
			t.Errorf("rate %v: once=%v twice=%v", r, once, twice)
		}
	}
}

// TestConventionWithInterval 测试单合约周期覆盖
func TestConventionWithInterval(t *testing.T) {
	c := ConventionFor(model.VenueBinance).WithInterval(4)
	if got := Normalize(0.0001, c); !almostEqual(got, 0.0002) {
		t.Errorf("got %v", got)
	}
	if c2 := c.WithInterval(0); c2.IntervalHours != 4 {
		t.Errorf("zero interval should keep 4, got %v", c2.IntervalHours)
	}
}

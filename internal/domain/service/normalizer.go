package service

import "fundingarb/internal/domain/model"

const (
	// BaseIntervalHours 统一的资金费周期
	BaseIntervalHours = 8.0
	// PeriodsPerDay 一天 3 个 8h 周期
	PeriodsPerDay = 3.0
	// AnnualPeriods 一年的 8h 周期数
	AnnualPeriods = 365 * PeriodsPerDay
)

// Convention 交易所原生资金费率的报价方式。百分比和年化都是按交易所显式配置的，不做推断
type Convention struct {
	Percent       bool
	Annualized    bool
	IntervalHours float64
}

// WithInterval 返回替换了周期的副本，hours<=0 时保持不变
func (c Convention) WithInterval(hours float64) Convention {
	if hours > 0 {
		c.IntervalHours = hours
	}
	return c
}

// Normalize 把原生费率转换为 8h 小数
func Normalize(raw float64, c Convention) float64 {
	v := raw
	if c.Percent {
		v = FromPercent(v)
	}
	if c.Annualized {
		return FromAnnual(v)
	}
	return Per8h(v, c.IntervalHours)
}

// Per8h rate × 8/hours，hours<=0 按 8h 处理
func Per8h(rate, hours float64) float64 {
	if hours <= 0 || hours == BaseIntervalHours {
		return rate
	}
	return rate * (BaseIntervalHours / hours)
}

// FromAnnual 年化 → 8h
func FromAnnual(a float64) float64 {
	return a / AnnualPeriods
}

// FromPercent 百分比 → 小数
func FromPercent(p float64) float64 {
	return p / 100
}

// DefaultConventions 各交易所的原生报价方式，可被配置覆盖
var DefaultConventions = map[string]Convention{
	model.VenueLighter:     {IntervalHours: 8},
	model.VenueBinance:     {IntervalHours: 8},
	model.VenueAster:       {IntervalHours: 8},
	model.VenueBackpack:    {IntervalHours: 1},
	model.VenueHyperliquid: {IntervalHours: 1},
	model.VenueEdgeX:       {IntervalHours: 4},
	model.VenueGRVT:        {Percent: true, IntervalHours: 8},
	model.VenueVariational: {Annualized: true},
	model.VenueParadex:     {IntervalHours: 8},
	model.VenueEthereal:    {IntervalHours: 1},
	model.VenueDYDX:        {IntervalHours: 1},
	model.VenueNado:        {IntervalHours: 24},
}

// ConventionFor 未知交易所按 8h 小数处理
func ConventionFor(venue string) Convention {
	if c, ok := DefaultConventions[venue]; ok {
		return c
	}
	return Convention{IntervalHours: BaseIntervalHours}
}

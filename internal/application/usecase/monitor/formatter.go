package monitor

import (
	"fmt"
	"strings"
	"time"

	"fundingarb/internal/domain/model"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiDim    = "\033[2m"
	ansiBold   = "\033[1m"
)

func colorize(s, c string) string { return c + s + ansiReset }

// View 一帧需要的数据
type View struct {
	Table         model.Table
	Opportunities []model.SpreadOpportunity
	Status        string
}

type Formatter struct {
	Capital float64
	Rows    int
	Color   bool
}

func NewFormatter(capital float64, rows int) *Formatter {
	return &Formatter{Capital: capital, Rows: rows, Color: true}
}

func (f *Formatter) paint(s, c string) string {
	if !f.Color {
		return s
	}
	return colorize(s, c)
}

// pct 8h 小数 → 百分比
func pct(v float64) string {
	return fmt.Sprintf("%+.4f%%", v*100)
}

func (f *Formatter) rate(v float64, dir Dir) string {
	s := pct(v)
	switch dir {
	case DirUp:
		s += "↑"
	case DirDown:
		s += "↓"
	default:
		s += " "
	}
	switch {
	case v > 0:
		return f.paint(s, ansiGreen)
	case v < 0:
		return f.paint(s, ansiRed)
	default:
		return f.paint(s, ansiYellow)
	}
}

// Render 整屏输出：表头、价差排行、费率表
func (f *Formatter) Render(v View, st *State) string {
	var sb strings.Builder

	updated := "--"
	if !v.Table.LastUpdated.IsZero() {
		updated = v.Table.LastUpdated.Local().Format(time.DateTime)
	}
	status := v.Status
	if strings.HasPrefix(status, "degraded") {
		status = f.paint(status, ansiRed)
	} else {
		status = f.paint(status, ansiGreen)
	}
	sb.WriteString(f.paint("[FUNDINGARB] ", ansiDim))
	fmt.Fprintf(&sb, "updated %s | %s\n\n", updated, status)

	fmt.Fprintf(&sb, "%s\n", f.paint(fmt.Sprintf("Top spreads (estimated 24h, capital $%.0f)", f.Capital), ansiBold))
	if len(v.Opportunities) == 0 {
		sb.WriteString(f.paint("  no opportunities yet\n", ansiDim))
	}
	for i, o := range v.Opportunities {
		fmt.Fprintf(&sb, "  %2d. %-10s short %-12s long %-12s diff %s  24h %s  %s\n",
			i+1, o.Symbol, o.HighVenue, o.LowVenue,
			pct(o.RateDiff),
			f.paint(pct(o.Estimated24hRate), ansiGreen),
			f.paint(fmt.Sprintf("$%.2f", o.EstimatedGrossProfit), ansiCyan),
		)
	}
	sb.WriteString("\n")

	venues := tableVenues(v.Table)
	fmt.Fprintf(&sb, "%-12s", "SYMBOL")
	for _, venue := range venues {
		fmt.Fprintf(&sb, " %-13s", venue)
	}
	sb.WriteString("\n")

	rows := v.Table.Rows
	if f.Rows > 0 && len(rows) > f.Rows {
		rows = rows[:f.Rows]
	}
	for _, row := range rows {
		fmt.Fprintf(&sb, "%-12s", row.Symbol)
		for _, venue := range venues {
			r, ok := row.Rates[venue]
			if !ok {
				sb.WriteString(" " + f.paint(fmt.Sprintf("%-13s", "--"), ansiDim))
				continue
			}
			dir := DirSame
			if st != nil {
				dir = st.DirOf(row.Symbol, venue)
			}
			// 颜色码不占宽度，手动补齐
			cell := f.rate(r, dir)
			pad := 13 - len([]rune(pct(r))) - 1
			if pad < 0 {
				pad = 0
			}
			sb.WriteString(" " + cell + strings.Repeat(" ", pad))
		}
		sb.WriteString("\n")
	}
	if len(v.Table.Rows) > len(rows) {
		fmt.Fprintf(&sb, "%s\n", f.paint(fmt.Sprintf("... %d more", len(v.Table.Rows)-len(rows)), ansiDim))
	}
	return sb.String()
}

// Summary 定时快照的单行摘要
func (f *Formatter) Summary(v View) string {
	if len(v.Opportunities) == 0 {
		return fmt.Sprintf("rows=%d no opportunities | %s", len(v.Table.Rows), v.Status)
	}
	o := v.Opportunities[0]
	return fmt.Sprintf("rows=%d best %s short %s long %s diff %s 24h %s ($%.2f) | %s",
		len(v.Table.Rows), o.Symbol, o.HighVenue, o.LowVenue, pct(o.RateDiff), pct(o.Estimated24hRate), o.EstimatedGrossProfit, v.Status)
}

func tableVenues(t model.Table) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, row := range t.Rows {
		for venue := range row.Rates {
			if _, ok := seen[venue]; !ok {
				seen[venue] = struct{}{}
				out = append(out, venue)
			}
		}
	}
	model.SortVenues(out)
	return out
}

package service

import (
	"strings"

	"fundingarb/internal/domain/model"
)

// StatusLine 汇总降级的数据源，同一个交易所的多个源合并展示
func StatusLine(statuses []model.SourceStatus) string {
	type entry struct {
		venue  string
		reason []string
	}
	byVenue := make(map[string]*entry)
	for _, s := range statuses {
		if !s.Degraded() {
			continue
		}
		venue := s.Venue
		if venue == "" {
			venue = s.Source
		}
		e := byVenue[venue]
		if e == nil {
			e = &entry{venue: venue}
			byVenue[venue] = e
		}
		e.reason = append(e.reason, statusReason(s))
	}
	if len(byVenue) == 0 {
		return "all sources healthy"
	}

	venues := make([]string, 0, len(byVenue))
	for v := range byVenue {
		venues = append(venues, v)
	}
	model.SortVenues(venues)

	parts := make([]string, 0, len(venues))
	for _, v := range venues {
		e := byVenue[v]
		parts = append(parts, v+" ("+strings.Join(e.reason, "; ")+")")
	}
	return "degraded: " + strings.Join(parts, " | ")
}

func statusReason(s model.SourceStatus) string {
	if s.State == model.StateDisconnected {
		if s.LastError != "" {
			return "disconnected, retrying: " + s.LastError
		}
		return "disconnected, retrying"
	}
	if s.LastError != "" {
		return s.LastError
	}
	return string(s.State)
}

package model

import (
	"fmt"
	"strings"
)

// FetchError 单次 HTTP 拉取失败
type FetchError struct {
	Venue  string
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Venue, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Venue, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// InstrumentFailure one instrument of a multi-call fetch that failed.
type InstrumentFailure struct {
	Symbol string
	Err    error
}

// PartialError 部分合约失败，成功的结果仍然返回
type PartialError struct {
	Venue    string
	Failures []InstrumentFailure
}

func (e *PartialError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Symbol, f.Err))
	}
	return "Partial data: " + strings.Join(parts, "; ")
}

package monitor

import (
	"sync"

	"fundingarb/internal/domain/model"
)

type Dir int

const (
	DirSame Dir = 0
	DirUp   Dir = +1
	DirDown Dir = -1
)

type rateState struct {
	num float64
	dir Dir
}

// State 记录每个 symbol/交易所上一次展示的费率，用来显示涨跌方向
type State struct {
	mu sync.Mutex

	tableID string
	rates   map[string]map[string]*rateState // symbol -> venue -> state
}

func NewState() *State {
	return &State{rates: make(map[string]map[string]*rateState)}
}

// Apply 应用一张新表，返回是否是新表
func (s *State) Apply(t model.Table) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID != "" && t.ID == s.tableID {
		return false
	}
	s.tableID = t.ID

	for _, row := range t.Rows {
		venues := s.rates[row.Symbol]
		if venues == nil {
			venues = make(map[string]*rateState)
			s.rates[row.Symbol] = venues
		}
		for venue, n := range row.Rates {
			rs := venues[venue]
			if rs == nil {
				venues[venue] = &rateState{num: n, dir: DirSame}
				continue
			}
			switch {
			case n > rs.num:
				rs.dir = DirUp
			case n < rs.num:
				rs.dir = DirDown
			default:
				rs.dir = DirSame
			}
			rs.num = n
		}
	}
	return true
}

// DirOf 上一次变化的方向
func (s *State) DirOf(symbol, venue string) Dir {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs := s.rates[symbol][venue]; rs != nil {
		return rs.dir
	}
	return DirSame
}

package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"fundingarb/internal/application/port"
)

// 清屏并把光标移到左上角
const clearScreen = "\033[H\033[2J"

type Sink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewSink() port.Sink { return NewSinkTo(os.Stdout) }

// NewSinkTo 写到指定 writer，测试用
func NewSinkTo(w io.Writer) *Sink { return &Sink{out: w} }

func (s *Sink) WriteFrame(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.out, clearScreen+frame)
	return err
}

// 快照行前后各留一个空行，下一帧重画时会被清掉
func (s *Sink) WriteSnapshot(ts time.Time, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "\n%s %s\n\n", ts.Format(time.DateTime), line)
	return err
}

func (s *Sink) NewLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.out, "\n")
	return err
}

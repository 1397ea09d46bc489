package port

import "time"

type Sink interface {
	// Frame: clear the screen and draw a full dashboard frame
	WriteFrame(frame string) error
	// Snapshot line: append a historical line with timestamp
	WriteSnapshot(ts time.Time, line string) error
	// Normal newline (for logs)
	NewLine() error
}

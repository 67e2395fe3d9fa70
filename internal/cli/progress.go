package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// waitReporter draws a spinner on stderr while a generation request is in
// flight. It stays silent when stderr is not a terminal.
type waitReporter struct {
	enabled bool
	label   string
	start   time.Time
	lastLen int

	stop chan struct{}
	done sync.WaitGroup
}

func newWaitReporter(label string) *waitReporter {
	stat, err := os.Stderr.Stat()
	enabled := err == nil && (stat.Mode()&os.ModeCharDevice) != 0
	return &waitReporter{
		enabled: enabled,
		label:   label,
	}
}

func (r *waitReporter) Start() {
	if !r.enabled {
		return
	}
	r.start = time.Now()
	r.stop = make(chan struct{})
	r.done.Add(1)
	go func() {
		defer r.done.Done()
		frames := [4]string{"-", "\\", "|", "/"}
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()
		for spinner := 0; ; spinner++ {
			elapsed := time.Since(r.start).Truncate(time.Second)
			r.printStatus(fmt.Sprintf("%s waiting for %s (%s)", frames[spinner%len(frames)], r.label, elapsed))
			select {
			case <-r.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the spinner line. It is safe to call without Start.
func (r *waitReporter) Stop() {
	if !r.enabled || r.stop == nil {
		return
	}
	close(r.stop)
	r.done.Wait()
	r.stop = nil
	fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", r.lastLen))
}

func (r *waitReporter) printStatus(status string) {
	if r.lastLen > len(status) {
		status = status + strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	fmt.Fprintf(os.Stderr, "\r%s", status)
}

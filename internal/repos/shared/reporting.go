package shared

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Reporter emits user-visible diagnostics, one formatted line per event.
type Reporter interface {
	Printf(format string, args ...any)
}

type writerReporter struct {
	mutex  sync.Mutex
	writer io.Writer
}

// NewWriterReporter constructs a Reporter that writes to writer, or to stdout
// when writer is nil. Concurrent Printf calls never interleave.
func NewWriterReporter(writer io.Writer) Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &writerReporter{writer: writer}
}

func (reporter *writerReporter) Printf(format string, args ...any) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	fmt.Fprintf(reporter.writer, format, args...)
}

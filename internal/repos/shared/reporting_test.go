package shared_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/checkouts/internal/repos/shared"
)

func TestWriterReporterFormatsLines(t *testing.T) {
	buffer := &bytes.Buffer{}
	reporter := shared.NewWriterReporter(buffer)

	reporter.Printf("The project %s has no upstream on %s with %s\n", "ghost", "nobody", "ghost")
	require.Equal(t, "The project ghost has no upstream on nobody with ghost\n", buffer.String())
}

func TestWriterReporterSerializesConcurrentWrites(t *testing.T) {
	buffer := &bytes.Buffer{}
	reporter := shared.NewWriterReporter(buffer)

	var waitGroup sync.WaitGroup
	for workerIndex := 0; workerIndex < 16; workerIndex++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			reporter.Printf("line %02d\n", workerIndex)
		}()
	}
	waitGroup.Wait()

	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	require.Len(t, lines, 16)
	for _, line := range lines {
		require.Regexp(t, `^line \d\d$`, line)
	}
}

func TestWriterReporterDestinations(t *testing.T) {
	testCases := []struct {
		name           string
		writer         io.Writer
		expectedStdout string
	}{
		{name: "nil_writer_uses_stdout", writer: nil, expectedStdout: "report line\n"},
		{name: "discard_stays_silent", writer: io.Discard, expectedStdout: ""},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			capturePath := filepath.Join(t.TempDir(), "stdout")
			captureFile, createError := os.Create(capturePath)
			require.NoError(t, createError)

			originalStdout := os.Stdout
			os.Stdout = captureFile
			t.Cleanup(func() {
				os.Stdout = originalStdout
			})

			reporter := shared.NewWriterReporter(testCase.writer)
			reporter.Printf("report line\n")

			os.Stdout = originalStdout
			require.NoError(t, captureFile.Close())

			captured, readError := os.ReadFile(capturePath)
			require.NoError(t, readError)
			require.Equal(t, testCase.expectedStdout, string(captured))
		})
	}
}

package relay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxLineSize bounds a single relay line. Longer lines are skipped and the
// stream carries on.
const MaxLineSize = 1 << 20

const readBufferSize = 64 * 1024

// Result partitions a relay stream. A line lands in exactly one of the two
// slices, in stream order. Skipped counts lines over MaxLineSize.
type Result struct {
	Forwarded []string
	Signals   []string
	Skipped   int
}

// Decode splits r into forwarded lines and signal payloads. Blank lines are
// skipped and a CRLF terminator counts as a plain newline.
func Decode(r io.Reader) (Result, error) {
	var res Result
	err := scanLines(r, func(line string) {
		if payload, ok := signalPayload(line); ok {
			res.Signals = append(res.Signals, payload)
			return
		}
		res.Forwarded = append(res.Forwarded, line)
	}, func(int) {
		res.Skipped++
	})
	return res, err
}

func signalPayload(line string) (string, bool) {
	return strings.CutPrefix(line, SignalPrefix)
}

// scanLines calls fn for every non-blank line of r and skipped with the
// length of every line over MaxLineSize. Only a read fault ends it early.
func scanLines(r io.Reader, fn func(line string), skipped func(size int)) error {
	br := bufio.NewReaderSize(r, readBufferSize)
	var (
		buf      []byte
		size     int
		oversize bool
	)
	emit := func() {
		line := strings.TrimSuffix(strings.TrimSuffix(string(buf), "\n"), "\r")
		switch {
		case oversize || len(line) > MaxLineSize:
			skipped(size)
		case line != "":
			fn(line)
		}
		buf, size, oversize = buf[:0], 0, false
	}
	for {
		chunk, err := br.ReadSlice('\n')
		size += len(chunk)
		if !oversize {
			if size > MaxLineSize+2 {
				oversize = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil:
			emit()
		case errors.Is(err, io.EOF):
			if size > 0 {
				emit()
			}
			return nil
		default:
			return fmt.Errorf("read relay stream: %w", err)
		}
	}
}

// Package wire frames the bank protocol: one command per line, each line
// terminated by a single '\n'.
package wire

import (
	"bufio"
	"bytes"
	"io"

	bankerr "bankd/internal/errors"
)

// Delimiter terminates every request and reply line.
const Delimiter = '\n'

// LineReader reads delimiter-terminated lines no longer than a fixed limit.
type LineReader struct {
	r   *bufio.Reader
	max int
}

// NewLineReader returns a reader that rejects lines longer than maxLen
// bytes (excluding the delimiter).
func NewLineReader(r io.Reader, maxLen int) *LineReader {
	size := maxLen + 1
	if size < 16 {
		size = 16
	}
	return &LineReader{r: bufio.NewReaderSize(r, size), max: maxLen}
}

// ReadLine returns the next line without its delimiter or a trailing '\r'.
//
// A line over the limit is consumed up to and including its delimiter and
// ErrLineTooLong is returned, so the caller can report it and keep reading.
// A final unterminated line is returned with a nil error; io.EOF follows.
func (lr *LineReader) ReadLine() (string, error) {
	line, err := lr.r.ReadSlice(Delimiter)
	switch {
	case err == bufio.ErrBufferFull:
		return "", lr.discard()
	case err == io.EOF && len(line) > 0:
		err = nil
	case err != nil:
		return "", err
	}

	line = bytes.TrimSuffix(line, []byte{Delimiter})
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(line) > lr.max {
		return "", bankerr.ErrLineTooLong
	}
	return string(line), nil
}

// discard drops the rest of an overlong line.
func (lr *LineReader) discard() error {
	for {
		_, err := lr.r.ReadSlice(Delimiter)
		switch err {
		case nil:
			return bankerr.ErrLineTooLong
		case bufio.ErrBufferFull:
			continue
		default:
			return err
		}
	}
}

// WriteLine writes s followed by the delimiter in a single write.
func WriteLine(w io.Writer, s string) error {
	buf := make([]byte, 0, len(s)+1)
	buf = append(buf, s...)
	buf = append(buf, Delimiter)
	_, err := w.Write(buf)
	return err
}

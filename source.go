package arvos

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// lineSource yields template lines, each with its trailing newline if it had
// one. It returns io.EOF once exhausted.
type lineSource interface {
	next() (string, error)
}

// sliceSource replays lines already in memory: loop bodies and cached
// templates.
type sliceSource struct {
	lines []string
	pos   int
}

func (s *sliceSource) next() (string, error) {
	if s.pos >= len(s.lines) {
		return "", io.EOF
	}
	line := s.lines[s.pos]
	s.pos++
	return line, nil
}

// readerSource reads lines from a template file. Lines longer than max bytes,
// not counting the newline, fail with ErrLineTooLong.
type readerSource struct {
	name string
	max  int
	r    *bufio.Reader
	line int
}

func newReaderSource(name string, r io.Reader, max int) *readerSource {
	return &readerSource{
		name: name,
		max:  max,
		r:    bufio.NewReaderSize(r, max+1),
	}
}

func (s *readerSource) next() (string, error) {
	buf, err := s.r.ReadSlice('\n')
	s.line++
	if errors.Is(err, bufio.ErrBufferFull) || len(strings.TrimSuffix(string(buf), "\n")) > s.max {
		return "", fmt.Errorf("error reading %q line %d: %w: limit is %d bytes", s.name, s.line, ErrLineTooLong, s.max)
	}
	if errors.Is(err, io.EOF) && len(buf) > 0 {
		return string(buf), nil
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", fmt.Errorf("error reading %q line %d: %w", s.name, s.line, err)
	}
	return string(buf), nil
}

// readAll drains src into memory.
func readAll(src lineSource) ([]string, error) {
	var lines []string
	for {
		line, err := src.next()
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/samcharles93/streamrt/internal/wavio"
)

// source yields interleaved chunks until io.EOF.
type source interface {
	Read() ([]float32, error)
}

// sink receives interleaved output frames.
type sink interface {
	Write(samples []float32) error
	Close() error
}

// textSource reads whitespace separated numbers.
type textSource struct {
	sc    *bufio.Scanner
	chunk int
}

func newTextSource(r io.Reader, chunk int) *textSource {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	return &textSource{sc: sc, chunk: chunk}
}

func (s *textSource) Read() ([]float32, error) {
	out := make([]float32, 0, s.chunk)
	for len(out) < s.chunk && s.sc.Scan() {
		v, err := strconv.ParseFloat(s.sc.Text(), 32)
		if err != nil {
			return nil, fmt.Errorf("parse sample %q: %w", s.sc.Text(), err)
		}
		out = append(out, float32(v))
	}
	if err := s.sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, io.EOF
	}
	return out, nil
}

// textSink prints one frame per line.
type textSink struct {
	w        *bufio.Writer
	closer   io.Closer
	channels int
	pos      int
}

func newTextSink(w io.Writer, closer io.Closer, channels int) *textSink {
	return &textSink{w: bufio.NewWriter(w), closer: closer, channels: max(channels, 1)}
}

func (s *textSink) Write(samples []float32) error {
	var sb strings.Builder
	for _, v := range samples {
		if s.pos != 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
		s.pos++
		if s.pos == s.channels {
			sb.WriteByte('\n')
			s.pos = 0
		}
	}
	_, err := s.w.WriteString(sb.String())
	return err
}

func (s *textSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// wavSink owns the file under a wav writer.
type wavSink struct {
	*wavio.Writer
	f *os.File
}

func (s wavSink) Close() error {
	if err := s.Writer.Close(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}

// wavSource owns the file under a wav reader.
type wavSource struct {
	*wavio.Reader
	f *os.File
}

func (s wavSource) Close() error { return s.f.Close() }

type textFileSource struct {
	*textSource
	f *os.File
}

func (s textFileSource) Close() error { return s.f.Close() }

func isWav(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".wav")
}

// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slcode provides an indentation-aware output stream for
// emitting C-like kernel source.
//
// Every '{' written to the stream increases the indentation of the
// following lines and every '}' decreases it, so code fragments that
// contain their own blocks are indented consistently with the code
// generated around them. Open and Close write checked scope brackets:
// each Close must name the id of the matching Open, which catches
// unbalanced emission at generation time.
package slcode

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Indent is the string written per indentation level
const Indent = "    "

// Stream writes kernel source with automatic indentation.
type Stream struct {
	w         io.Writer
	level     int
	lineStart bool
	scopes    []int
	err       error
}

// New returns a stream writing to w
func New(w io.Writer) *Stream {
	return &Stream{w: w, lineStart: true}
}

// NewBuffer returns a stream writing into a fresh buffer, which is
// also returned.
func NewBuffer() (*Stream, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(&buf), &buf
}

// Err returns the first error encountered: a write failure or a
// mismatched scope bracket.
func (s *Stream) Err() error {
	if s.err != nil {
		return s.err
	}
	if len(s.scopes) > 0 {
		return fmt.Errorf("slcode: unclosed scope %d", s.scopes[len(s.scopes)-1])
	}
	return nil
}

// Level returns the current indentation level
func (s *Stream) Level() int {
	return s.level
}

func (s *Stream) setErr(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Write implements io.Writer, indenting each new line by the current level.
func (s *Stream) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	var out bytes.Buffer
	for _, c := range p {
		if s.lineStart && c != '\n' {
			if c == '}' && s.level > 0 {
				s.level--
				// closing brace already accounted for
				out.WriteString(strings.Repeat(Indent, s.level))
				out.WriteByte(c)
				s.lineStart = false
				continue
			}
			out.WriteString(strings.Repeat(Indent, s.level))
		}
		switch c {
		case '{':
			s.level++
		case '}':
			if s.level > 0 {
				s.level--
			}
		}
		out.WriteByte(c)
		s.lineStart = c == '\n'
	}
	if _, err := s.w.Write(out.Bytes()); err != nil {
		s.setErr(err)
		return 0, err
	}
	return len(p), nil
}

// WriteString writes str with indentation
func (s *Stream) WriteString(str string) {
	s.Write([]byte(str))
}

// Printf writes formatted text
func (s *Stream) Printf(format string, args ...any) {
	fmt.Fprintf(s, format, args...)
}

// Println writes formatted text followed by a newline
func (s *Stream) Println(format string, args ...any) {
	fmt.Fprintf(s, format, args...)
	s.Write([]byte{'\n'})
}

// Code writes a multi-line code fragment, adding a final newline if
// the fragment lacks one. Leading indentation of the fragment lines is
// replaced by the stream's own.
func (s *Stream) Code(code string) {
	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	for _, ln := range lines {
		ln = strings.TrimLeft(ln, " \t")
		if ln == "" {
			s.Write([]byte{'\n'})
			continue
		}
		s.WriteString(ln)
		s.Write([]byte{'\n'})
	}
}

// Open writes an opening bracket for the scope with the given id,
// ending the current line, or on a line of its own at a line start.
func (s *Stream) Open(id int) {
	s.scopes = append(s.scopes, id)
	if s.lineStart {
		s.WriteString("{\n")
		return
	}
	s.WriteString(" {\n")
}

// Close writes the closing bracket of scope id, which must be the
// innermost open scope.
func (s *Stream) Close(id int) {
	n := len(s.scopes)
	switch {
	case n == 0:
		s.setErr(fmt.Errorf("slcode: close of scope %d with no open scope", id))
		return
	case s.scopes[n-1] != id:
		s.setErr(fmt.Errorf("slcode: close of scope %d does not match open scope %d", id, s.scopes[n-1]))
		return
	}
	s.scopes = s.scopes[:n-1]
	if !s.lineStart {
		s.Write([]byte{'\n'})
	}
	s.WriteString("}\n")
}

// Scope writes an anonymous bracketed block around fn
func (s *Stream) Scope(fn func()) {
	id := -(len(s.scopes) + 1)
	s.Open(id)
	fn()
	s.Close(id)
}

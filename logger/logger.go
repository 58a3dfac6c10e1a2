/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger wraps logrus behind the small surface the rest of this
// core needs: a single entry point per component, structured fields
// instead of formatted strings, and a level parsed from a plain string so
// it can come straight out of a Settings value.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is a structured-logging field set, passed through to logrus.
type Fields = logrus.Fields

// Logger is the subset of *logrus.Entry this core calls.
type Logger interface {
	WithFields(f Fields) Logger
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
}

type entry struct {
	e *logrus.Entry
}

func (l *entry) WithFields(f Fields) Logger {
	return &entry{e: l.e.WithFields(f)}
}

func (l *entry) Debug(args ...any) { l.e.Debug(args...) }
func (l *entry) Info(args ...any)  { l.e.Info(args...) }
func (l *entry) Warn(args ...any)  { l.e.Warn(args...) }
func (l *entry) Error(args ...any) { l.e.Error(args...) }

// New builds a Logger writing JSON-formatted entries to out (os.Stderr if
// nil) at level (parsed via logrus.ParseLevel; InfoLevel on an unknown or
// empty string), tagged with component in every entry.
func New(component string, level string, out io.Writer) Logger {
	if out == nil {
		out = os.Stderr
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(lvl)
	base.SetFormatter(&logrus.JSONFormatter{})

	return &entry{e: base.WithField("component", component)}
}

// Discard is a Logger that drops every entry, for callers that have not
// wired a real sink.
var Discard Logger = &entry{e: logrus.NewEntry(func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}())}

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

package config

import (
	"time"

	"github/sabouaram/someip-local/duration"
)

// Timing holds the endpoint/server timing knobs in the extended duration
// notation ("250ms", "3s", "1d" ...) a human-edited settings file uses,
// rather than raw nanosecond counts.
type Timing struct {
	ConnectDebounce   string
	ConnectingTimebox string
	HandshakeTimeout  string
}

// ParseTiming resolves a Timing's string fields into time.Duration,
// falling back to each given default when the field is empty, and
// reporting the first malformed value.
func ParseTiming(t Timing, defaults Timing) (connectDebounce, connectingTimebox, handshakeTimeout time.Duration, err error) {
	if connectDebounce, err = parseOrDefault(t.ConnectDebounce, defaults.ConnectDebounce); err != nil {
		return 0, 0, 0, err
	}
	if connectingTimebox, err = parseOrDefault(t.ConnectingTimebox, defaults.ConnectingTimebox); err != nil {
		return 0, 0, 0, err
	}
	if handshakeTimeout, err = parseOrDefault(t.HandshakeTimeout, defaults.HandshakeTimeout); err != nil {
		return 0, 0, 0, err
	}
	return connectDebounce, connectingTimebox, handshakeTimeout, nil
}

func parseOrDefault(s, def string) (time.Duration, error) {
	if s == "" {
		s = def
	}
	if s == "" {
		return 0, nil
	}
	d, err := duration.Parse(s)
	return d.Time(), err
}

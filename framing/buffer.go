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

// Package framing turns a raw byte stream into a sequence of length-prefixed
// commands. It owns no I/O: a caller appends bytes received from a socket
// into the tail capacity and repeatedly asks for the next complete message.
package framing

import (
	"encoding/binary"
	"math"

	liberr "github/sabouaram/someip-local/errors"
)

// InitialSize is the buffer's resting capacity: the size it is created
// with and the size it shrinks back to once drained and quiet.
const InitialSize = 128

// headerLen is the 9-byte command envelope header (see command package):
// 1-byte id, 2-byte version, 2-byte client id, 4-byte payload length.
const headerLen = 9

// Buffer is an offset-managed byte buffer over a command stream. It is not
// safe for concurrent use; callers run it on a single executor per spec.
type Buffer struct {
	mem   []byte
	start int
	end   int

	shrinkCounter   uint32
	maxMessageLen   uint32
	shrinkThreshold uint32
}

// New creates a Buffer with the given overflow ceiling and shrink
// threshold (number of consecutive small messages, each no larger than
// half of capacity, drained with the buffer empty, before it resizes back
// down to InitialSize).
func New(maxMessageLen, shrinkThreshold uint32) *Buffer {
	return &Buffer{
		mem:             make([]byte, InitialSize),
		maxMessageLen:   maxMessageLen,
		shrinkThreshold: shrinkThreshold,
	}
}

// Stats returns the number of unread bytes, the total backing capacity,
// and shrinkCounter, the current run length of small drained messages —
// exposed as a read-only snapshot for operators.
func (b *Buffer) Stats() (length, capacity int, shrinkCounter uint32) {
	return b.end - b.start, len(b.mem), b.shrinkCounter
}

// Tail returns the writable capacity at the end of the buffer, for the
// caller's next read into it.
func (b *Buffer) Tail() []byte {
	return b.mem[b.end:]
}

// BumpEnd records that n bytes were written into Tail(). It fails if n
// exceeds the available tail capacity.
func (b *Buffer) BumpEnd(n int) error {
	if n < 0 || n > len(b.mem)-b.end {
		return liberr.New(ErrorOverflow.Uint16(), getMessage(ErrorOverflow))
	}
	b.end += n
	return nil
}

// ShiftFront moves unread bytes [start, end) to offset 0, so that future
// growth appends capacity rather than leaving a widening dead zone at the
// front. The copy is element-wise forward and tolerates overlap.
func (b *Buffer) ShiftFront() {
	if b.start == 0 {
		return
	}
	n := copy(b.mem, b.mem[b.start:b.end])
	b.start = 0
	b.end = n
}

func (b *Buffer) grow(extra int) error {
	if extra <= 0 {
		return nil
	}
	newLen := len(b.mem) + extra
	if newLen < len(b.mem) || newLen > math.MaxInt32 {
		return liberr.New(ErrorOverflow.Uint16(), getMessage(ErrorOverflow))
	}

	grown := make([]byte, newLen)
	copy(grown, b.mem[:b.end])
	b.mem = grown
	return nil
}

func (b *Buffer) maybeShrink() {
	if b.end != b.start {
		return
	}
	if b.shrinkThreshold == 0 {
		return
	}
	if b.shrinkCounter < b.shrinkThreshold {
		return
	}
	if len(b.mem) <= InitialSize {
		return
	}
	b.mem = make([]byte, InitialSize)
	b.start, b.end = 0, 0
}

// NextMessage returns the next complete framed command, advancing start
// past it. It returns (nil, nil, false) when the stream has no complete
// message yet (growing the buffer first when the whole declared message is
// larger than the capacity; unread bytes are not moved to offset 0, which
// is ShiftFront's job), and (nil, err, false) when the declared length
// exceeds the configured maximum.
func (b *Buffer) NextMessage() (msg []byte, err error, ok bool) {
	avail := b.end - b.start
	if avail < headerLen {
		if free := len(b.mem) - b.end; free < headerLen {
			if gerr := b.grow(headerLen - free); gerr != nil {
				return nil, gerr, false
			}
		}
		return nil, nil, false
	}

	length := binary.LittleEndian.Uint32(b.mem[b.start+5 : b.start+9])
	if length > b.maxMessageLen {
		return nil, liberr.New(ErrorMessageTooLarge.Uint16(), getMessage(ErrorMessageTooLarge)), false
	}

	total := int(length) + headerLen
	if total > avail {
		if total > len(b.mem) {
			if gerr := b.grow(total - len(b.mem)); gerr != nil {
				return nil, gerr, false
			}
		}
		return nil, nil, false
	}

	out := b.mem[b.start : b.start+total]
	b.start += total

	if total > len(b.mem)/2 {
		b.shrinkCounter = 0
	} else {
		b.shrinkCounter++
	}

	b.maybeShrink()
	return out, nil, true
}

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

package command

import (
	"encoding/binary"

	liberr "github/sabouaram/someip-local/errors"
)

// HeaderLen is the fixed size of the envelope header in bytes.
const HeaderLen = 9

// CurrentVersion is the only protocol version this core emits or accepts.
const CurrentVersion uint16 = 0

// Header is the fixed-size envelope preceding every command payload.
type Header struct {
	ID       ID
	Version  uint16
	ClientID uint16
	Size     uint32
}

// EncodeHeader writes h's 9-byte wire form to the front of buf, which must
// be at least HeaderLen bytes.
func EncodeHeader(h Header, buf []byte) error {
	if len(buf) < HeaderLen {
		return liberr.New(ErrorNotEnoughBytes.Uint16(), getMessage(ErrorNotEnoughBytes))
	}
	buf[0] = byte(h.ID)
	binary.LittleEndian.PutUint16(buf[1:3], h.Version)
	binary.LittleEndian.PutUint16(buf[3:5], h.ClientID)
	binary.LittleEndian.PutUint32(buf[5:9], h.Size)
	return nil
}

// DecodeHeader parses the 9-byte header at the front of a framed message.
// It rejects unknown protocol versions; the caller is expected to hand it
// a slice that framing.Buffer.NextMessage already validated for length.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, liberr.New(ErrorNotEnoughBytes.Uint16(), getMessage(ErrorNotEnoughBytes))
	}

	h := Header{
		ID:       ID(buf[0]),
		Version:  binary.LittleEndian.Uint16(buf[1:3]),
		ClientID: binary.LittleEndian.Uint16(buf[3:5]),
		Size:     binary.LittleEndian.Uint32(buf[5:9]),
	}
	if h.Version != CurrentVersion {
		return Header{}, liberr.New(ErrorUnknownVersion.Uint16(), getMessage(ErrorUnknownVersion))
	}
	if int(h.Size) != len(buf)-HeaderLen {
		return Header{}, liberr.New(ErrorMalformed.Uint16(), getMessage(ErrorMalformed))
	}
	return h, nil
}

// Payload returns the payload slice of a framed message whose header has
// already been decoded.
func Payload(buf []byte) []byte {
	if len(buf) <= HeaderLen {
		return nil
	}
	return buf[HeaderLen:]
}

// Encode assembles a complete framed message: header followed by payload.
func Encode(id ID, clientID uint16, payload []byte) []byte {
	out := make([]byte, HeaderLen+len(payload))
	_ = EncodeHeader(Header{ID: id, Version: CurrentVersion, ClientID: clientID, Size: uint32(len(payload))}, out)
	copy(out[HeaderLen:], payload)
	return out
}

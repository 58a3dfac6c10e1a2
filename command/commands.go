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

// AssignClientIDCmd carries the application name hint a sender sends when
// requesting a client id from the router.
type AssignClientIDCmd struct {
	Name string
}

func (c AssignClientIDCmd) Serialize() []byte {
	return Encode(AssignClientID, 0, []byte(c.Name))
}

func DeserializeAssignClientID(payload []byte) (AssignClientIDCmd, error) {
	return AssignClientIDCmd{Name: string(payload)}, nil
}

// AssignClientACKIDCmd carries the router-assigned client id back to the
// requester.
type AssignClientACKIDCmd struct {
	AssignedClientID uint16
}

func (c AssignClientACKIDCmd) Serialize(clientID uint16) []byte {
	p := make([]byte, 2)
	binary.LittleEndian.PutUint16(p, c.AssignedClientID)
	return Encode(AssignClientACKID, clientID, p)
}

func DeserializeAssignClientACKID(payload []byte) (AssignClientACKIDCmd, error) {
	if len(payload) < 2 {
		return AssignClientACKIDCmd{}, liberr.New(ErrorMalformed.Uint16(), getMessage(ErrorMalformed))
	}
	return AssignClientACKIDCmd{AssignedClientID: binary.LittleEndian.Uint16(payload[:2])}, nil
}

// ConfigIDCmd carries a sequence of key/value pairs a non-router peer uses
// to self-identify; the only key this core interprets is "hostname", kept
// byte-exact and left to the routing host to interpret further.
type ConfigIDCmd struct {
	Entries map[string]string
}

func (c ConfigIDCmd) Serialize(clientID uint16) []byte {
	var payload []byte
	for k, v := range c.Entries {
		kb, vb := []byte(k), []byte(v)
		entry := make([]byte, 4+len(kb)+4+len(vb))
		binary.LittleEndian.PutUint32(entry[0:4], uint32(len(kb)))
		copy(entry[4:4+len(kb)], kb)
		off := 4 + len(kb)
		binary.LittleEndian.PutUint32(entry[off:off+4], uint32(len(vb)))
		copy(entry[off+4:], vb)
		payload = append(payload, entry...)
	}
	return Encode(ConfigID, clientID, payload)
}

func DeserializeConfigID(payload []byte) (ConfigIDCmd, error) {
	out := ConfigIDCmd{Entries: map[string]string{}}
	i := 0
	for i < len(payload) {
		if i+4 > len(payload) {
			return ConfigIDCmd{}, liberr.New(ErrorMalformed.Uint16(), getMessage(ErrorMalformed))
		}
		klen := int(binary.LittleEndian.Uint32(payload[i : i+4]))
		i += 4
		if i+klen > len(payload) {
			return ConfigIDCmd{}, liberr.New(ErrorMalformed.Uint16(), getMessage(ErrorMalformed))
		}
		key := string(payload[i : i+klen])
		i += klen

		if i+4 > len(payload) {
			return ConfigIDCmd{}, liberr.New(ErrorMalformed.Uint16(), getMessage(ErrorMalformed))
		}
		vlen := int(binary.LittleEndian.Uint32(payload[i : i+4]))
		i += 4
		if i+vlen > len(payload) {
			return ConfigIDCmd{}, liberr.New(ErrorMalformed.Uint16(), getMessage(ErrorMalformed))
		}
		val := string(payload[i : i+vlen])
		i += vlen

		out.Entries[key] = val
	}
	return out, nil
}

// Hostname returns the "hostname" entry, or "" if absent.
func (c ConfigIDCmd) Hostname() string {
	return c.Entries["hostname"]
}

// OfferServiceCmd describes a service/instance being offered or withdrawn.
type OfferServiceCmd struct {
	Service  uint16
	Instance uint16
	Major    uint8
	Minor    uint32
}

func (c OfferServiceCmd) Serialize(id ID, clientID uint16) []byte {
	p := make([]byte, 9)
	binary.LittleEndian.PutUint16(p[0:2], c.Service)
	binary.LittleEndian.PutUint16(p[2:4], c.Instance)
	p[4] = c.Major
	binary.LittleEndian.PutUint32(p[5:9], c.Minor)
	return Encode(id, clientID, p)
}

func DeserializeOfferService(payload []byte) (OfferServiceCmd, error) {
	if len(payload) < 9 {
		return OfferServiceCmd{}, liberr.New(ErrorMalformed.Uint16(), getMessage(ErrorMalformed))
	}
	return OfferServiceCmd{
		Service:  binary.LittleEndian.Uint16(payload[0:2]),
		Instance: binary.LittleEndian.Uint16(payload[2:4]),
		Major:    payload[4],
		Minor:    binary.LittleEndian.Uint32(payload[5:9]),
	}, nil
}

// RoutingInfoEntry names one known client in a RoutingInfoCmd.
type RoutingInfoEntry struct {
	ClientID uint16
	Name     string
}

// RoutingInfoCmd carries the router's view of currently known clients.
type RoutingInfoCmd struct {
	Entries []RoutingInfoEntry
}

func (c RoutingInfoCmd) Serialize(clientID uint16) []byte {
	var payload []byte
	for _, e := range c.Entries {
		nb := []byte(e.Name)
		entry := make([]byte, 2+4+len(nb))
		binary.LittleEndian.PutUint16(entry[0:2], e.ClientID)
		binary.LittleEndian.PutUint32(entry[2:6], uint32(len(nb)))
		copy(entry[6:], nb)
		payload = append(payload, entry...)
	}
	return Encode(RoutingInfoID, clientID, payload)
}

func DeserializeRoutingInfo(payload []byte) (RoutingInfoCmd, error) {
	var out RoutingInfoCmd
	i := 0
	for i < len(payload) {
		if i+6 > len(payload) {
			return RoutingInfoCmd{}, liberr.New(ErrorMalformed.Uint16(), getMessage(ErrorMalformed))
		}
		cid := binary.LittleEndian.Uint16(payload[i : i+2])
		nlen := int(binary.LittleEndian.Uint32(payload[i+2 : i+6]))
		i += 6
		if i+nlen > len(payload) {
			return RoutingInfoCmd{}, liberr.New(ErrorMalformed.Uint16(), getMessage(ErrorMalformed))
		}
		name := string(payload[i : i+nlen])
		i += nlen
		out.Entries = append(out.Entries, RoutingInfoEntry{ClientID: cid, Name: name})
	}
	return out, nil
}

// Raw carries the opaque payload of any command id this core does not
// interpret itself (SUBSCRIBE, SEND, NOTIFY, security-policy ids, ...); it
// still round-trips through the envelope so every id in the enumeration
// survives a decode/encode cycle.
type Raw struct {
	Header  Header
	Payload []byte
}

func (r Raw) Serialize() []byte {
	return Encode(r.Header.ID, r.Header.ClientID, r.Payload)
}

// PingCmd and PongCmd carry no payload; they back the optional endpoint
// keep-alive (armed only when a ping interval is configured).
type PingCmd struct{}
type PongCmd struct{}

func (PingCmd) Serialize(clientID uint16) []byte { return Encode(Ping, clientID, nil) }
func (PongCmd) Serialize(clientID uint16) []byte { return Encode(Pong, clientID, nil) }

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

// Package command implements the 9-byte intra-host command envelope
// (id, version, client id, payload length) and the codecs for the
// handshake and routing-info commands that this core interprets directly;
// every other id round-trips through Raw, an opaque payload carrier.
package command

// ID identifies the kind of a framed command.
type ID uint8

const (
	AssignClientID          ID = 0x00
	AssignClientACKID       ID = 0x01
	RegisterApplicationID   ID = 0x02
	DeregisterApplicationID ID = 0x03
	RoutingInfoID           ID = 0x05
	RegisteredACKID         ID = 0x06
	Ping                    ID = 0x07
	Pong                    ID = 0x08
	OfferService            ID = 0x10
	StopOfferService        ID = 0x11
	Subscribe               ID = 0x12
	Unsubscribe             ID = 0x13
	RequestService          ID = 0x14
	ReleaseService          ID = 0x15
	SubscribeNack           ID = 0x16
	SubscribeAck            ID = 0x17
	Send                    ID = 0x18
	Notify                  ID = 0x19
	NotifyOne               ID = 0x1A
	RegisterEvent           ID = 0x1B
	UnregisterEvent         ID = 0x1C
	IDResponse              ID = 0x1D
	IDRequest               ID = 0x1E
	OfferedServicesRequest  ID = 0x1F
	OfferedServicesResponse ID = 0x20
	UnsubscribeAck          ID = 0x21
	ResendProvidedEvents    ID = 0x22
	UpdateSecurityPolicy    ID = 0x23
	UpdateSecurityPolicyResponse ID = 0x24
	RemoveSecurityPolicy    ID = 0x25
	RemoveSecurityPolicyResponse ID = 0x26
	UpdateSecurityCredentials    ID = 0x27
	UpdateSecurityCredentialsResponse ID = 0x28
	DistributeSecurityPolicies ID = 0x29
	Expire                  ID = 0x2A
	Suspend                 ID = 0x30
	ConfigID                ID = 0x31
	Unknown                 ID = 0xFF
)

var idNames = map[ID]string{
	AssignClientID:                     "ASSIGN_CLIENT_ID",
	AssignClientACKID:                  "ASSIGN_CLIENT_ACK_ID",
	RegisterApplicationID:              "REGISTER_APPLICATION_ID",
	DeregisterApplicationID:            "DEREGISTER_APPLICATION_ID",
	RoutingInfoID:                      "ROUTING_INFO_ID",
	RegisteredACKID:                    "REGISTERED_ACK_ID",
	Ping:                               "PING",
	Pong:                               "PONG",
	OfferService:                       "OFFER_SERVICE",
	StopOfferService:                   "STOP_OFFER_SERVICE",
	Subscribe:                          "SUBSCRIBE",
	Unsubscribe:                        "UNSUBSCRIBE",
	RequestService:                     "REQUEST_SERVICE",
	ReleaseService:                     "RELEASE_SERVICE",
	SubscribeNack:                      "SUBSCRIBE_NACK",
	SubscribeAck:                       "SUBSCRIBE_ACK",
	Send:                               "SEND",
	Notify:                             "NOTIFY",
	NotifyOne:                          "NOTIFY_ONE",
	RegisterEvent:                      "REGISTER_EVENT",
	UnregisterEvent:                    "UNREGISTER_EVENT",
	IDResponse:                         "ID_RESPONSE",
	IDRequest:                          "ID_REQUEST",
	OfferedServicesRequest:             "OFFERED_SERVICES_REQUEST",
	OfferedServicesResponse:            "OFFERED_SERVICES_RESPONSE",
	UnsubscribeAck:                     "UNSUBSCRIBE_ACK",
	ResendProvidedEvents:               "RESEND_PROVIDED_EVENTS",
	UpdateSecurityPolicy:               "UPDATE_SECURITY_POLICY",
	UpdateSecurityPolicyResponse:       "UPDATE_SECURITY_POLICY_RESPONSE",
	RemoveSecurityPolicy:               "REMOVE_SECURITY_POLICY",
	RemoveSecurityPolicyResponse:       "REMOVE_SECURITY_POLICY_RESPONSE",
	UpdateSecurityCredentials:          "UPDATE_SECURITY_CREDENTIALS",
	UpdateSecurityCredentialsResponse:  "UPDATE_SECURITY_CREDENTIALS_RESPONSE",
	DistributeSecurityPolicies:         "DISTRIBUTE_SECURITY_POLICIES",
	Expire:                             "EXPIRE",
	Suspend:                            "SUSPEND",
	ConfigID:                           "CONFIG_ID",
	Unknown:                            "UNKNOWN",
}

// String returns the canonical name of the command id, or "UNKNOWN" for
// any value not in the enumeration.
func (i ID) String() string {
	if n, ok := idNames[i]; ok {
		return n
	}
	return "UNKNOWN"
}

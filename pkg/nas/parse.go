package nas

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	ErrUnknownMessageType = errors.New("unknown 5GMM message type")
	ErrDecode             = errors.New("malformed NAS PDU")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("nas: cbor encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("nas: cbor decoder mode: %v", err))
	}
}

// envelope is the outer framing of every NAS PDU. A plain message carries
// its body directly; a protected one carries the plain PDU in Inner.
type envelope struct {
	EPD            uint8              `cbor:"1,keyasint"`
	SecurityHeader SecurityHeaderType `cbor:"2,keyasint"`
	MAC            []byte             `cbor:"3,keyasint,omitempty"`
	Sequence       uint8              `cbor:"4,keyasint,omitempty"`
	Type           MsgType            `cbor:"5,keyasint"`
	Body           cbor.RawMessage    `cbor:"6,keyasint,omitempty"`
	Inner          []byte             `cbor:"7,keyasint,omitempty"`
}

var constructors = map[MsgType]func() Message{
	RegistrationRequestType:                func() Message { return new(RegistrationRequest) },
	RegistrationAcceptType:                 func() Message { return new(RegistrationAccept) },
	RegistrationCompleteType:               func() Message { return new(RegistrationComplete) },
	RegistrationRejectType:                 func() Message { return new(RegistrationReject) },
	DeregistrationRequestUEOriginatingType: func() Message { return new(DeregistrationRequestUEOriginating) },
	DeregistrationAcceptUEOriginatingType:  func() Message { return new(DeregistrationAcceptUEOriginating) },
	DeregistrationRequestUETerminatedType:  func() Message { return new(DeregistrationRequestUETerminated) },
	DeregistrationAcceptUETerminatedType:   func() Message { return new(DeregistrationAcceptUETerminated) },
	ServiceRequestType:                     func() Message { return new(ServiceRequest) },
	ServiceRejectType:                      func() Message { return new(ServiceReject) },
	ServiceAcceptType:                      func() Message { return new(ServiceAccept) },
	ConfigurationUpdateCommandType:         func() Message { return new(ConfigurationUpdateCommand) },
	ConfigurationUpdateCompleteType:        func() Message { return new(ConfigurationUpdateComplete) },
	AuthenticationRequestType:              func() Message { return new(AuthenticationRequest) },
	AuthenticationResponseType:             func() Message { return new(AuthenticationResponse) },
	AuthenticationRejectType:               func() Message { return new(AuthenticationReject) },
	AuthenticationFailureType:              func() Message { return new(AuthenticationFailure) },
	AuthenticationResultType:               func() Message { return new(AuthenticationResult) },
	IdentityRequestType:                    func() Message { return new(IdentityRequest) },
	IdentityResponseType:                   func() Message { return new(IdentityResponse) },
	SecurityModeCommandType:                func() Message { return new(SecurityModeCommand) },
	SecurityModeCompleteType:               func() Message { return new(SecurityModeComplete) },
	SecurityModeRejectType:                 func() Message { return new(SecurityModeReject) },
	ULNASTransportType:                     func() Message { return new(ULNASTransport) },
	DLNASTransportType:                     func() Message { return new(DLNASTransport) },
}

// Encode produces a plain NAS PDU.
func Encode(msg Message) ([]byte, error) {
	body, err := encMode.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(&envelope{
		EPD:            EPD5GMM,
		SecurityHeader: PlainNas,
		Type:           msg.MsgType(),
		Body:           body,
	})
}

// MACFunc computes the NAS-MAC over the sequence number followed by the
// plain PDU.
type MACFunc func(count uint8, plain []byte) ([]byte, error)

// EncodeProtected wraps the plain encoding of msg in a security protected
// header.
func EncodeProtected(msg Message, hdr SecurityHeaderType, seq uint8, mac MACFunc) ([]byte, error) {
	if hdr == PlainNas {
		return Encode(msg)
	}
	plain, err := Encode(msg)
	if err != nil {
		return nil, err
	}
	tag, err := mac(seq, plain)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(&envelope{
		EPD:            EPD5GMM,
		SecurityHeader: hdr,
		MAC:            tag,
		Sequence:       seq,
		Type:           msg.MsgType(),
		Inner:          plain,
	})
}

// Protected is a decoded NAS PDU together with its security header.
type Protected struct {
	Header   SecurityHeaderType
	MAC      []byte
	Sequence uint8
	// Plain is the inner plain PDU the MAC was computed over.
	Plain   []byte
	Message Message
}

// Verify checks the MAC of a protected PDU. Plain PDUs never verify.
func (p *Protected) Verify(mac MACFunc) bool {
	if p.Header == PlainNas {
		return false
	}
	tag, err := mac(p.Sequence, p.Plain)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(tag, p.MAC) == 1
}

// Decode parses a NAS PDU, unwrapping a security protected header without
// checking it.
func Decode(b []byte) (Message, error) {
	p, err := DecodeProtected(b)
	if err != nil {
		return nil, err
	}
	return p.Message, nil
}

func DecodeProtected(b []byte) (*Protected, error) {
	var env envelope
	if err := decMode.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if env.EPD != EPD5GMM {
		return nil, fmt.Errorf("%w: protocol discriminator 0x%02x", ErrDecode, env.EPD)
	}
	if env.SecurityHeader != PlainNas {
		msg, err := decodePlain(env.Inner)
		if err != nil {
			return nil, err
		}
		if msg.MsgType() != env.Type {
			return nil, fmt.Errorf("%w: outer type %s, inner %s", ErrDecode, env.Type, msg.MsgType())
		}
		return &Protected{
			Header:   env.SecurityHeader,
			MAC:      env.MAC,
			Sequence: env.Sequence,
			Plain:    env.Inner,
			Message:  msg,
		}, nil
	}
	msg, err := decodeBody(env)
	if err != nil {
		return nil, err
	}
	return &Protected{Header: PlainNas, Plain: b, Message: msg}, nil
}

func decodePlain(b []byte) (Message, error) {
	var env envelope
	if err := decMode.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if env.EPD != EPD5GMM || env.SecurityHeader != PlainNas {
		return nil, fmt.Errorf("%w: nested security header", ErrDecode)
	}
	return decodeBody(env)
}

func decodeBody(env envelope) (Message, error) {
	ctor, ok := constructors[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, env.Type)
	}
	msg := ctor()
	if len(env.Body) > 0 {
		if err := decMode.Unmarshal(env.Body, msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDecode, env.Type, err)
		}
	}
	return msg, nil
}

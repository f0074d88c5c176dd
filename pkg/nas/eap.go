package nas

import "fmt"

// EapCode is the EAP packet code (RFC 3748).
type EapCode uint8

const (
	EapRequest  EapCode = 1
	EapResponse EapCode = 2
	EapSuccess  EapCode = 3
	EapFailure  EapCode = 4
)

type EapAkaSubtype uint8

const (
	AkaChallenge              EapAkaSubtype = 1
	AkaAuthenticationReject   EapAkaSubtype = 2
	AkaSynchronizationFailure EapAkaSubtype = 4
	AkaIdentity               EapAkaSubtype = 5
	AkaNotification           EapAkaSubtype = 12
	AkaReauthentication       EapAkaSubtype = 13
	AkaClientError            EapAkaSubtype = 14
)

// EapAttribute identifies an EAP-AKA' attribute (RFC 4187, RFC 5448).
type EapAttribute uint8

const (
	AtRand     EapAttribute = 1
	AtAutn     EapAttribute = 2
	AtRes      EapAttribute = 3
	AtAuts     EapAttribute = 4
	AtMac      EapAttribute = 11
	AtKdfInput EapAttribute = 23
	AtKdf      EapAttribute = 24
)

func (a EapAttribute) String() string {
	switch a {
	case AtRand:
		return "AT_RAND"
	case AtAutn:
		return "AT_AUTN"
	case AtRes:
		return "AT_RES"
	case AtAuts:
		return "AT_AUTS"
	case AtMac:
		return "AT_MAC"
	case AtKdfInput:
		return "AT_KDF_INPUT"
	case AtKdf:
		return "AT_KDF"
	default:
		return fmt.Sprintf("AT(%d)", uint8(a))
	}
}

// EapAkaPrime is an EAP-AKA' packet carried in the EAP message IE.
// Attribute values are stored as their raw octets, reserved octets included.
type EapAkaPrime struct {
	Code       EapCode                 `cbor:"1,keyasint"`
	ID         uint8                   `cbor:"2,keyasint"`
	Subtype    EapAkaSubtype           `cbor:"3,keyasint"`
	Attributes map[EapAttribute][]byte `cbor:"4,keyasint,omitempty"`
}

func NewEapAkaPrime(code EapCode, id uint8, subtype EapAkaSubtype) *EapAkaPrime {
	return &EapAkaPrime{
		Code:       code,
		ID:         id,
		Subtype:    subtype,
		Attributes: make(map[EapAttribute][]byte),
	}
}

func (e *EapAkaPrime) Attribute(a EapAttribute) ([]byte, bool) {
	if e == nil || e.Attributes == nil {
		return nil, false
	}
	v, ok := e.Attributes[a]
	return v, ok
}

func (e *EapAkaPrime) Set(a EapAttribute, v []byte) {
	if e.Attributes == nil {
		e.Attributes = make(map[EapAttribute][]byte)
	}
	e.Attributes[a] = v
}

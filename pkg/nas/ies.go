package nas

import "fmt"

// SecurityContextType is the TSC flag of the NAS key set identifier.
type SecurityContextType uint8

const (
	NativeSecurityContext SecurityContextType = 0
	MappedSecurityContext SecurityContextType = 1
)

// NoKeyAvailable is the ngKSI value meaning "no key is available".
const NoKeyAvailable uint8 = 7

type NasKeySetIdentifier struct {
	Tsc SecurityContextType `cbor:"1,keyasint"`
	Ksi uint8               `cbor:"2,keyasint"`
}

type RegistrationTypeValue uint8

const (
	InitialRegistration          RegistrationTypeValue = 1
	MobilityRegistrationUpdating RegistrationTypeValue = 2
	PeriodicRegistrationUpdating RegistrationTypeValue = 3
	EmergencyRegistration        RegistrationTypeValue = 4
)

func (v RegistrationTypeValue) String() string {
	switch v {
	case InitialRegistration:
		return "INITIAL_REGISTRATION"
	case MobilityRegistrationUpdating:
		return "MOBILITY_REGISTRATION_UPDATING"
	case PeriodicRegistrationUpdating:
		return "PERIODIC_REGISTRATION_UPDATING"
	case EmergencyRegistration:
		return "EMERGENCY_REGISTRATION"
	default:
		return fmt.Sprintf("RegistrationType(%d)", uint8(v))
	}
}

type FollowOnRequest uint8

const (
	NoFollowOnRequestPending FollowOnRequest = 0
	FollowOnRequestPending   FollowOnRequest = 1
)

type RegistrationType struct {
	Value    RegistrationTypeValue `cbor:"1,keyasint"`
	FollowOn FollowOnRequest       `cbor:"2,keyasint"`
}

// IdentityType is the type of identity half-octet (TS 24.501 9.11.3.3).
type IdentityType uint8

const (
	NoIdentity IdentityType = 0
	SUCI       IdentityType = 1
	GUTI5G     IdentityType = 2
	IMEI       IdentityType = 3
	TMSI5G     IdentityType = 4
	IMEISV     IdentityType = 5
	MACAddress IdentityType = 6
	EUI64      IdentityType = 7
)

func (t IdentityType) String() string {
	switch t {
	case NoIdentity:
		return "NO_IDENTITY"
	case SUCI:
		return "SUCI"
	case GUTI5G:
		return "5G-GUTI"
	case IMEI:
		return "IMEI"
	case TMSI5G:
		return "5G-S-TMSI"
	case IMEISV:
		return "IMEISV"
	case MACAddress:
		return "MAC_ADDRESS"
	case EUI64:
		return "EUI64"
	default:
		return fmt.Sprintf("IdentityType(%d)", uint8(t))
	}
}

// MobileIdentity carries any 5GS mobile identity in its textual form,
// e.g. "suci-0-001-01-0000-0-0-0000000001" or a 15 digit IMEI.
type MobileIdentity struct {
	Type  IdentityType `cbor:"1,keyasint"`
	Value string       `cbor:"2,keyasint"`
}

func (m MobileIdentity) String() string {
	return fmt.Sprintf("%s:%s", m.Type, m.Value)
}

type SwitchOff uint8

const (
	NormalDeregistration    SwitchOff = 0
	SwitchOffDeregistration SwitchOff = 1
)

type AccessType uint8

const (
	Access3GPP        AccessType = 1
	AccessNon3GPP     AccessType = 2
	Access3GPPAndNon3 AccessType = 3
)

type DeregistrationType struct {
	SwitchOff              SwitchOff  `cbor:"1,keyasint"`
	ReRegistrationRequired bool       `cbor:"2,keyasint"`
	AccessType             AccessType `cbor:"3,keyasint"`
}

type SNSSAI struct {
	SST uint8  `cbor:"1,keyasint"`
	SD  string `cbor:"2,keyasint,omitempty"`
}

// SecurityCapability lists the supported algorithms as bitmaps,
// bit n set meaning algorithm n is supported.
type SecurityCapability struct {
	EA uint8 `cbor:"1,keyasint"`
	IA uint8 `cbor:"2,keyasint"`
}

func (c SecurityCapability) SupportsIA(alg uint8) bool {
	return alg < 8 && c.IA&(1<<alg) != 0
}

func (c SecurityCapability) SupportsEA(alg uint8) bool {
	return alg < 8 && c.EA&(1<<alg) != 0
}

// PayloadContainerType of UL/DL NAS transport (TS 24.501 9.11.3.40).
type PayloadContainerType uint8

const (
	PayloadN1SMInformation PayloadContainerType = 1
	PayloadSMS             PayloadContainerType = 2
	PayloadLPP             PayloadContainerType = 3
	PayloadSOR             PayloadContainerType = 4
	PayloadUEPolicy        PayloadContainerType = 5
)

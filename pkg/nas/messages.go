package nas

// Message is a decoded 5GMM message. The set of implementations is closed:
// every message dispatches itself to exactly one Handler method.
type Message interface {
	MsgType() MsgType
	Accept(h Handler) bool
}

type RegistrationRequest struct {
	RegistrationType     RegistrationType    `cbor:"1,keyasint"`
	NgKSI                NasKeySetIdentifier `cbor:"2,keyasint"`
	MobileIdentity       MobileIdentity      `cbor:"3,keyasint"`
	RequestedNSSAI       []SNSSAI            `cbor:"4,keyasint,omitempty"`
	UESecurityCapability SecurityCapability  `cbor:"5,keyasint"`
}

type RegistrationAccept struct {
	Result       uint8           `cbor:"1,keyasint"`
	GUTI         *MobileIdentity `cbor:"2,keyasint,omitempty"`
	AllowedNSSAI []SNSSAI        `cbor:"3,keyasint,omitempty"`
	// T3512 value in seconds, zero when absent.
	T3512 uint32 `cbor:"4,keyasint,omitempty"`
}

type RegistrationComplete struct{}

type RegistrationReject struct {
	Cause Cause5GMM `cbor:"1,keyasint"`
	// T3346 value in seconds, zero when absent.
	T3346 uint32 `cbor:"2,keyasint,omitempty"`
}

type DeregistrationRequestUEOriginating struct {
	DeregistrationType DeregistrationType  `cbor:"1,keyasint"`
	NgKSI              NasKeySetIdentifier `cbor:"2,keyasint"`
	MobileIdentity     MobileIdentity      `cbor:"3,keyasint"`
}

type DeregistrationAcceptUEOriginating struct{}

type DeregistrationRequestUETerminated struct {
	DeregistrationType DeregistrationType `cbor:"1,keyasint"`
	Cause              Cause5GMM          `cbor:"2,keyasint,omitempty"`
}

type DeregistrationAcceptUETerminated struct{}

type ServiceRequest struct {
	ServiceType uint8               `cbor:"1,keyasint"`
	NgKSI       NasKeySetIdentifier `cbor:"2,keyasint"`
	TMSI        MobileIdentity      `cbor:"3,keyasint"`
}

type ServiceAccept struct{}

type ServiceReject struct {
	Cause Cause5GMM `cbor:"1,keyasint"`
}

type ConfigurationUpdateCommand struct {
	AcknowledgementRequested bool            `cbor:"1,keyasint"`
	GUTI                     *MobileIdentity `cbor:"2,keyasint,omitempty"`
}

type ConfigurationUpdateComplete struct{}

type AuthenticationRequest struct {
	NgKSI NasKeySetIdentifier `cbor:"1,keyasint"`
	ABBA  []byte              `cbor:"2,keyasint"`
	// RAND and AUTN are present for 5G AKA, EAP for EAP-AKA'.
	RAND []byte       `cbor:"3,keyasint,omitempty"`
	AUTN []byte       `cbor:"4,keyasint,omitempty"`
	EAP  *EapAkaPrime `cbor:"5,keyasint,omitempty"`
}

type AuthenticationResponse struct {
	ResponseParameter []byte       `cbor:"1,keyasint,omitempty"`
	EAP               *EapAkaPrime `cbor:"2,keyasint,omitempty"`
}

type AuthenticationReject struct {
	EAP *EapAkaPrime `cbor:"1,keyasint,omitempty"`
}

type AuthenticationFailure struct {
	Cause            Cause5GMM `cbor:"1,keyasint"`
	FailureParameter []byte    `cbor:"2,keyasint,omitempty"`
}

type AuthenticationResult struct {
	NgKSI NasKeySetIdentifier `cbor:"1,keyasint"`
	EAP   *EapAkaPrime        `cbor:"2,keyasint,omitempty"`
	ABBA  []byte              `cbor:"3,keyasint,omitempty"`
}

type IdentityRequest struct {
	IdentityType IdentityType `cbor:"1,keyasint"`
}

type IdentityResponse struct {
	MobileIdentity MobileIdentity `cbor:"1,keyasint"`
}

type SecurityModeCommand struct {
	IntegrityAlg       uint8               `cbor:"1,keyasint"`
	CipheringAlg       uint8               `cbor:"2,keyasint"`
	NgKSI              NasKeySetIdentifier `cbor:"3,keyasint"`
	ReplayedCapability SecurityCapability  `cbor:"4,keyasint"`
	IMEISVRequested    bool                `cbor:"5,keyasint,omitempty"`
	ABBA               []byte              `cbor:"6,keyasint,omitempty"`
}

type SecurityModeComplete struct {
	IMEISV *MobileIdentity `cbor:"1,keyasint,omitempty"`
	// NASContainer holds the complete initial registration request.
	NASContainer []byte `cbor:"2,keyasint,omitempty"`
}

type SecurityModeReject struct {
	Cause Cause5GMM `cbor:"1,keyasint"`
}

type ULNASTransport struct {
	PayloadContainerType PayloadContainerType `cbor:"1,keyasint"`
	PayloadContainer     []byte               `cbor:"2,keyasint"`
	PDUSessionID         uint8                `cbor:"3,keyasint,omitempty"`
}

type DLNASTransport struct {
	PayloadContainerType PayloadContainerType `cbor:"1,keyasint"`
	PayloadContainer     []byte               `cbor:"2,keyasint"`
	PDUSessionID         uint8                `cbor:"3,keyasint,omitempty"`
	Cause                Cause5GMM            `cbor:"4,keyasint,omitempty"`
}

func (*RegistrationRequest) MsgType() MsgType  { return RegistrationRequestType }
func (*RegistrationAccept) MsgType() MsgType   { return RegistrationAcceptType }
func (*RegistrationComplete) MsgType() MsgType { return RegistrationCompleteType }
func (*RegistrationReject) MsgType() MsgType   { return RegistrationRejectType }
func (*DeregistrationRequestUEOriginating) MsgType() MsgType {
	return DeregistrationRequestUEOriginatingType
}
func (*DeregistrationAcceptUEOriginating) MsgType() MsgType {
	return DeregistrationAcceptUEOriginatingType
}
func (*DeregistrationRequestUETerminated) MsgType() MsgType {
	return DeregistrationRequestUETerminatedType
}
func (*DeregistrationAcceptUETerminated) MsgType() MsgType {
	return DeregistrationAcceptUETerminatedType
}
func (*ServiceRequest) MsgType() MsgType             { return ServiceRequestType }
func (*ServiceAccept) MsgType() MsgType              { return ServiceAcceptType }
func (*ServiceReject) MsgType() MsgType              { return ServiceRejectType }
func (*ConfigurationUpdateCommand) MsgType() MsgType { return ConfigurationUpdateCommandType }
func (*ConfigurationUpdateComplete) MsgType() MsgType {
	return ConfigurationUpdateCompleteType
}
func (*AuthenticationRequest) MsgType() MsgType  { return AuthenticationRequestType }
func (*AuthenticationResponse) MsgType() MsgType { return AuthenticationResponseType }
func (*AuthenticationReject) MsgType() MsgType   { return AuthenticationRejectType }
func (*AuthenticationFailure) MsgType() MsgType  { return AuthenticationFailureType }
func (*AuthenticationResult) MsgType() MsgType   { return AuthenticationResultType }
func (*IdentityRequest) MsgType() MsgType        { return IdentityRequestType }
func (*IdentityResponse) MsgType() MsgType       { return IdentityResponseType }
func (*SecurityModeCommand) MsgType() MsgType    { return SecurityModeCommandType }
func (*SecurityModeComplete) MsgType() MsgType   { return SecurityModeCompleteType }
func (*SecurityModeReject) MsgType() MsgType     { return SecurityModeRejectType }
func (*ULNASTransport) MsgType() MsgType         { return ULNASTransportType }
func (*DLNASTransport) MsgType() MsgType         { return DLNASTransportType }

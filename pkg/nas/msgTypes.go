package nas

import "fmt"

// MsgType is the 5GMM message type octet (TS 24.501 9.7).
type MsgType uint8

const (
	RegistrationRequestType                MsgType = 0x41
	RegistrationAcceptType                 MsgType = 0x42
	RegistrationCompleteType               MsgType = 0x43
	RegistrationRejectType                 MsgType = 0x44
	DeregistrationRequestUEOriginatingType MsgType = 0x45
	DeregistrationAcceptUEOriginatingType  MsgType = 0x46
	DeregistrationRequestUETerminatedType  MsgType = 0x47
	DeregistrationAcceptUETerminatedType   MsgType = 0x48
	ServiceRequestType                     MsgType = 0x4c
	ServiceRejectType                      MsgType = 0x4d
	ServiceAcceptType                      MsgType = 0x4e
	ConfigurationUpdateCommandType         MsgType = 0x54
	ConfigurationUpdateCompleteType        MsgType = 0x55
	AuthenticationRequestType              MsgType = 0x56
	AuthenticationResponseType             MsgType = 0x57
	AuthenticationRejectType               MsgType = 0x58
	AuthenticationFailureType              MsgType = 0x59
	AuthenticationResultType               MsgType = 0x5a
	IdentityRequestType                    MsgType = 0x5b
	IdentityResponseType                   MsgType = 0x5c
	SecurityModeCommandType                MsgType = 0x5d
	SecurityModeCompleteType               MsgType = 0x5e
	SecurityModeRejectType                 MsgType = 0x5f
	ULNASTransportType                     MsgType = 0x67
	DLNASTransportType                     MsgType = 0x68
)

var msgTypeNames = map[MsgType]string{
	RegistrationRequestType:                "RegistrationRequest",
	RegistrationAcceptType:                 "RegistrationAccept",
	RegistrationCompleteType:               "RegistrationComplete",
	RegistrationRejectType:                 "RegistrationReject",
	DeregistrationRequestUEOriginatingType: "DeregistrationRequestUEOriginating",
	DeregistrationAcceptUEOriginatingType:  "DeregistrationAcceptUEOriginating",
	DeregistrationRequestUETerminatedType:  "DeregistrationRequestUETerminated",
	DeregistrationAcceptUETerminatedType:   "DeregistrationAcceptUETerminated",
	ServiceRequestType:                     "ServiceRequest",
	ServiceRejectType:                      "ServiceReject",
	ServiceAcceptType:                      "ServiceAccept",
	ConfigurationUpdateCommandType:         "ConfigurationUpdateCommand",
	ConfigurationUpdateCompleteType:        "ConfigurationUpdateComplete",
	AuthenticationRequestType:              "AuthenticationRequest",
	AuthenticationResponseType:             "AuthenticationResponse",
	AuthenticationRejectType:               "AuthenticationReject",
	AuthenticationFailureType:              "AuthenticationFailure",
	AuthenticationResultType:               "AuthenticationResult",
	IdentityRequestType:                    "IdentityRequest",
	IdentityResponseType:                   "IdentityResponse",
	SecurityModeCommandType:                "SecurityModeCommand",
	SecurityModeCompleteType:               "SecurityModeComplete",
	SecurityModeRejectType:                 "SecurityModeReject",
	ULNASTransportType:                     "ULNASTransport",
	DLNASTransportType:                     "DLNASTransport",
}

func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MsgType(0x%02x)", uint8(t))
}

// SecurityHeaderType is the security header type half-octet (TS 24.501 9.3).
type SecurityHeaderType uint8

const (
	PlainNas                                    SecurityHeaderType = 0
	IntegrityProtected                          SecurityHeaderType = 1
	IntegrityProtectedAndCiphered               SecurityHeaderType = 2
	IntegrityProtectedWithNewContext            SecurityHeaderType = 3
	IntegrityProtectedAndCipheredWithNewContext SecurityHeaderType = 4
)

// ExtendedProtocolDiscriminator for 5GS mobility management messages.
const EPD5GMM uint8 = 0x7e

// Cause5GMM is the 5GMM cause value (TS 24.501 9.11.3.2).
type Cause5GMM uint8

const (
	CauseIllegalUE                     Cause5GMM = 3
	CausePEINotAccepted                Cause5GMM = 5
	CauseIllegalME                     Cause5GMM = 6
	Cause5GSServicesNotAllowed         Cause5GMM = 7
	CauseUEIdentityNotDerived          Cause5GMM = 9
	CauseImplicitlyDeregistered        Cause5GMM = 10
	CausePLMNNotAllowed                Cause5GMM = 11
	CauseTANotAllowed                  Cause5GMM = 12
	CauseMACFailure                    Cause5GMM = 20
	CauseSynchFailure                  Cause5GMM = 21
	CauseCongestion                    Cause5GMM = 22
	CauseUESecurityCapMismatch         Cause5GMM = 23
	CauseSecurityModeRejected          Cause5GMM = 24
	CauseNon5GAuthUnacceptable         Cause5GMM = 26
	CauseProtocolErrorUnspecified      Cause5GMM = 111
	CauseMessageTypeNotImplemented     Cause5GMM = 97
	CauseIENotImplemented              Cause5GMM = 99
	CauseSemanticallyIncorrect         Cause5GMM = 95
	CauseInvalidMandatoryInfo          Cause5GMM = 96
	CauseMessageNotCompatibleWithState Cause5GMM = 101
)

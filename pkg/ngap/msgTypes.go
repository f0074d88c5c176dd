package ngap

import "fmt"

// Description is the top-level NGAP-PDU choice.
type Description uint8

const (
	InitiatingMessage Description = iota
	SuccessfulOutcome
	UnsuccessfulOutcome
)

func (d Description) String() string {
	switch d {
	case InitiatingMessage:
		return "InitiatingMessage"
	case SuccessfulOutcome:
		return "SuccessfulOutcome"
	case UnsuccessfulOutcome:
		return "UnsuccessfulOutcome"
	default:
		return fmt.Sprintf("Description(%d)", uint8(d))
	}
}

// ProcedureCode values from TS 38.413 9.4.7.
type ProcedureCode uint8

const (
	DownlinkNASTransport    ProcedureCode = 4
	ErrorIndication         ProcedureCode = 9
	InitialContextSetup     ProcedureCode = 14
	InitialUEMessage        ProcedureCode = 15
	NGSetup                 ProcedureCode = 21
	UEContextRelease        ProcedureCode = 41
	UEContextReleaseRequest ProcedureCode = 42
	UplinkNASTransport      ProcedureCode = 46
)

// Criticality tells the peer how to treat an element it does not
// understand.
type Criticality uint8

const (
	Reject Criticality = iota
	Ignore
	Notify
)

func (c Criticality) String() string {
	switch c {
	case Reject:
		return "reject"
	case Ignore:
		return "ignore"
	case Notify:
		return "notify"
	default:
		return fmt.Sprintf("Criticality(%d)", uint8(c))
	}
}

// ProtocolIEID values from TS 38.413 9.4.7.
type ProtocolIEID uint16

const (
	AMFNameID                 ProtocolIEID = 1
	AMFUENGAPIDID             ProtocolIEID = 10
	CauseID                   ProtocolIEID = 15
	DefaultPagingDRXID        ProtocolIEID = 21
	GlobalRANNodeIDID         ProtocolIEID = 27
	GUAMIID                   ProtocolIEID = 28
	NASPDUID                  ProtocolIEID = 38
	RANNodeNameID             ProtocolIEID = 82
	RANUENGAPIDID             ProtocolIEID = 85
	RelativeAMFCapacityID     ProtocolIEID = 86
	RRCEstablishmentCauseID   ProtocolIEID = 90
	ServedGUAMIListID         ProtocolIEID = 96
	SupportedTAListID         ProtocolIEID = 102
	UENGAPIDsID               ProtocolIEID = 114
	UESecurityCapabilitiesID  ProtocolIEID = 119
	UserLocationInformationID ProtocolIEID = 121
)

type procedureKey struct {
	desc Description
	proc ProcedureCode
}

var messageNames = map[procedureKey]string{
	{InitiatingMessage, DownlinkNASTransport}:    "DownlinkNASTransport",
	{InitiatingMessage, ErrorIndication}:         "ErrorIndication",
	{InitiatingMessage, InitialContextSetup}:     "InitialContextSetupRequest",
	{SuccessfulOutcome, InitialContextSetup}:     "InitialContextSetupResponse",
	{UnsuccessfulOutcome, InitialContextSetup}:   "InitialContextSetupFailure",
	{InitiatingMessage, InitialUEMessage}:        "InitialUEMessage",
	{InitiatingMessage, NGSetup}:                 "NGSetupRequest",
	{SuccessfulOutcome, NGSetup}:                 "NGSetupResponse",
	{UnsuccessfulOutcome, NGSetup}:               "NGSetupFailure",
	{InitiatingMessage, UEContextRelease}:        "UEContextReleaseCommand",
	{SuccessfulOutcome, UEContextRelease}:        "UEContextReleaseComplete",
	{InitiatingMessage, UEContextReleaseRequest}: "UEContextReleaseRequest",
	{InitiatingMessage, UplinkNASTransport}:      "UplinkNASTransport",
}

// mandatoryIEs lists, per message, the elements Build refuses to omit.
var mandatoryIEs = map[procedureKey][]ProtocolIEID{
	{InitiatingMessage, DownlinkNASTransport}: {AMFUENGAPIDID, RANUENGAPIDID, NASPDUID},
	{InitiatingMessage, InitialContextSetup}:  {AMFUENGAPIDID, RANUENGAPIDID},
	{SuccessfulOutcome, InitialContextSetup}:  {AMFUENGAPIDID, RANUENGAPIDID},
	{InitiatingMessage, InitialUEMessage}: {
		RANUENGAPIDID, NASPDUID, UserLocationInformationID, RRCEstablishmentCauseID,
	},
	{InitiatingMessage, NGSetup}:          {GlobalRANNodeIDID, SupportedTAListID},
	{SuccessfulOutcome, NGSetup}:          {AMFNameID, ServedGUAMIListID, RelativeAMFCapacityID},
	{UnsuccessfulOutcome, NGSetup}:        {CauseID},
	{InitiatingMessage, UEContextRelease}: {UENGAPIDsID, CauseID},
	{SuccessfulOutcome, UEContextRelease}: {AMFUENGAPIDID, RANUENGAPIDID},
	{InitiatingMessage, UplinkNASTransport}: {
		AMFUENGAPIDID, RANUENGAPIDID, NASPDUID, UserLocationInformationID,
	},
}

package ngap

import (
	"encoding/gob"
	"fmt"
)

// IEValue is the decoded content of a protocol IE.
type IEValue interface {
	ProtocolIEID() ProtocolIEID
}

type RanUeNgapID uint32

// AmfUeNgapID is a 40 bit identifier.
type AmfUeNgapID uint64

type NasPdu []byte

type PLMN struct {
	MCC string
	MNC string
}

func (p PLMN) String() string {
	return fmt.Sprintf("%s-%s", p.MCC, p.MNC)
}

type TAI struct {
	PLMN PLMN
	TAC  uint32
}

type NRCGI struct {
	PLMN   PLMN
	CellID uint64
}

type UserLocationInformationNR struct {
	NRCGI NRCGI
	TAI   TAI
}

type RRCEstablishmentCause uint8

const (
	RRCEmergency RRCEstablishmentCause = iota
	RRCHighPriorityAccess
	RRCMtAccess
	RRCMoSignalling
	RRCMoData
	RRCMoVoiceCall
	RRCMoVideoCall
	RRCMoSMS
	RRCMpsPriorityAccess
	RRCMcsPriorityAccess
)

type CauseGroup uint8

const (
	CauseRadioNetwork CauseGroup = iota
	CauseTransport
	CauseNas
	CauseProtocol
	CauseMisc
)

type Cause struct {
	Group CauseGroup
	Value uint8
}

// Nas cause values.
const (
	NasNormalRelease         uint8 = 0
	NasAuthenticationFailure uint8 = 1
	NasDeregister            uint8 = 2
	NasUnspecified           uint8 = 3
)

// UENGAPIDs holds the pair (or only the AMF id when Pair is false).
type UENGAPIDs struct {
	AmfUeNgapID AmfUeNgapID
	RanUeNgapID RanUeNgapID
	Pair        bool
}

type GlobalRANNodeID struct {
	PLMN  PLMN
	GNBID uint32
}

type RANNodeName string

type SupportedTAList []TAI

type AMFName string

type GUAMI struct {
	PLMN        PLMN
	AMFRegionID uint8
	AMFSetID    uint16
	AMFPointer  uint8
}

type ServedGUAMIList []GUAMI

type RelativeAMFCapacity uint8

type DefaultPagingDRX uint16

// UESecurityCapabilities are NR bitmaps, bit n meaning algorithm n.
type UESecurityCapabilities struct {
	NREncryption uint8
	NRIntegrity  uint8
}

func (RanUeNgapID) ProtocolIEID() ProtocolIEID               { return RANUENGAPIDID }
func (AmfUeNgapID) ProtocolIEID() ProtocolIEID               { return AMFUENGAPIDID }
func (NasPdu) ProtocolIEID() ProtocolIEID                    { return NASPDUID }
func (UserLocationInformationNR) ProtocolIEID() ProtocolIEID { return UserLocationInformationID }
func (RRCEstablishmentCause) ProtocolIEID() ProtocolIEID     { return RRCEstablishmentCauseID }
func (Cause) ProtocolIEID() ProtocolIEID                     { return CauseID }
func (UENGAPIDs) ProtocolIEID() ProtocolIEID                 { return UENGAPIDsID }
func (GlobalRANNodeID) ProtocolIEID() ProtocolIEID           { return GlobalRANNodeIDID }
func (RANNodeName) ProtocolIEID() ProtocolIEID               { return RANNodeNameID }
func (SupportedTAList) ProtocolIEID() ProtocolIEID           { return SupportedTAListID }
func (AMFName) ProtocolIEID() ProtocolIEID                   { return AMFNameID }
func (GUAMI) ProtocolIEID() ProtocolIEID                     { return GUAMIID }
func (ServedGUAMIList) ProtocolIEID() ProtocolIEID           { return ServedGUAMIListID }
func (RelativeAMFCapacity) ProtocolIEID() ProtocolIEID       { return RelativeAMFCapacityID }
func (DefaultPagingDRX) ProtocolIEID() ProtocolIEID          { return DefaultPagingDRXID }
func (UESecurityCapabilities) ProtocolIEID() ProtocolIEID    { return UESecurityCapabilitiesID }

func init() {
	gob.Register(RanUeNgapID(0))
	gob.Register(AmfUeNgapID(0))
	gob.Register(NasPdu(nil))
	gob.Register(UserLocationInformationNR{})
	gob.Register(RRCEstablishmentCause(0))
	gob.Register(Cause{})
	gob.Register(UENGAPIDs{})
	gob.Register(GlobalRANNodeID{})
	gob.Register(RANNodeName(""))
	gob.Register(SupportedTAList(nil))
	gob.Register(AMFName(""))
	gob.Register(GUAMI{})
	gob.Register(ServedGUAMIList(nil))
	gob.Register(RelativeAMFCapacity(0))
	gob.Register(DefaultPagingDRX(0))
	gob.Register(UESecurityCapabilities{})
}

package flow

import (
	"go.uber.org/zap"

	"uesim/internal/crypto"
	"uesim/pkg/nas"
	"uesim/pkg/ngap"
)

// Sender is the transport boundary. It never blocks and never fails; a
// broken connection comes back later as a connection release.
type Sender interface {
	SendPdu(pdu *ngap.PDU)
}

// Session is the per-connection state shared by the endpoint and its flows.
// Both run on the endpoint task.
type Session struct {
	RanUeNgapID    uint32
	AmfUeNgapID    uint64
	ULI            ngap.UserLocationInformationNR
	GUTI           *nas.MobileIdentity
	NgKSI          uint8
	Kamf           []byte
	Security       *crypto.SecurityContext
	InitialRequest []byte
}

// EncodeNas protects msg with the session's security context when one is
// established.
func (s *Session) EncodeNas(msg nas.Message) ([]byte, error) {
	if s.Security == nil {
		return nas.Encode(msg)
	}
	seq := uint8(s.Security.ULCount)
	b, err := nas.EncodeProtected(msg, nas.IntegrityProtected, seq, s.Security.UplinkMAC())
	if err != nil {
		return nil, err
	}
	s.Security.ULCount++
	return b, nil
}

// SendUplinkNas wraps msg in an UplinkNASTransport.
func SendUplinkNas(s *Session, send Sender, msg nas.Message) error {
	b, err := s.EncodeNas(msg)
	if err != nil {
		return err
	}
	return SendUplinkNasBytes(s, send, b)
}

func SendUplinkNasBytes(s *Session, send Sender, b []byte) error {
	pdu, err := ngap.NewBuilder().
		WithDescription(ngap.InitiatingMessage).
		WithProcedure(ngap.UplinkNASTransport, ngap.Ignore).
		AddRanUeNgapID(s.RanUeNgapID, ngap.Reject).
		AddAmfUeNgapID(s.AmfUeNgapID, ngap.Reject).
		AddNasPduBytes(b, ngap.Reject).
		AddUserLocationInformationNR(s.ULI, ngap.Ignore).
		Build()
	if err != nil {
		return err
	}
	send.SendPdu(pdu)
	return nil
}

// SendUEContextReleaseComplete acknowledges a release command.
func SendUEContextReleaseComplete(s *Session, send Sender) error {
	pdu, err := ngap.NewBuilder().
		WithDescription(ngap.SuccessfulOutcome).
		WithProcedure(ngap.UEContextRelease, ngap.Reject).
		AddRanUeNgapID(s.RanUeNgapID, ngap.Ignore).
		AddAmfUeNgapID(s.AmfUeNgapID, ngap.Ignore).
		Build()
	if err != nil {
		return err
	}
	send.SendPdu(pdu)
	return nil
}

func sendOrLog(log *zap.SugaredLogger, what string, err error) bool {
	if err != nil {
		log.Errorw("cannot send message", "message", what, "error", err)
		return false
	}
	return true
}

// SendNGSetupRequest announces the simulated gNB serving the endpoint.
func SendNGSetupRequest(send Sender, id ngap.GlobalRANNodeID, name string, tai ngap.TAI) error {
	pdu, err := ngap.NewBuilder().
		WithDescription(ngap.InitiatingMessage).
		WithProcedure(ngap.NGSetup, ngap.Reject).
		AddProtocolIE(id, ngap.Reject).
		AddProtocolIE(ngap.RANNodeName(name), ngap.Ignore).
		AddProtocolIE(ngap.SupportedTAList{tai}, ngap.Reject).
		AddProtocolIE(ngap.DefaultPagingDRX(128), ngap.Ignore).
		Build()
	if err != nil {
		return err
	}
	send.SendPdu(pdu)
	return nil
}

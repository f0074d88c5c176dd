package flow

import (
	"errors"

	"go.uber.org/zap"

	"uesim/internal/crypto"
	"uesim/pkg/nas"
	"uesim/pkg/ngap"
)

type RegistrationInput struct {
	Type           nas.RegistrationTypeValue
	FollowOn       nas.FollowOnRequest
	NgKSI          uint8
	MobileIdentity nas.MobileIdentity
	IMEI           string
	RequestedNSSAI []nas.SNSSAI
	Capability     nas.SecurityCapability
	RRCCause       ngap.RRCEstablishmentCause
	Subscriber     *Subscriber
}

// Registration sends a registration request and answers the core until it
// accepts or rejects the endpoint.
type Registration struct {
	in   RegistrationInput
	sess *Session
	send Sender
	log  *zap.SugaredLogger

	waitAmf State
}

func NewRegistration(in RegistrationInput, sess *Session, send Sender, log *zap.SugaredLogger) *Registration {
	f := &Registration{in: in, sess: sess, send: send, log: log}
	f.waitAmf = NewState("waitAmfMessages", f.waitAmfMessages)
	return f
}

func (f *Registration) Name() string {
	return "registration"
}

func (f *Registration) Start() State {
	req := &nas.RegistrationRequest{
		RegistrationType:     nas.RegistrationType{Value: f.in.Type, FollowOn: f.in.FollowOn},
		NgKSI:                nas.NasKeySetIdentifier{Tsc: nas.NativeSecurityContext, Ksi: f.in.NgKSI},
		MobileIdentity:       f.in.MobileIdentity,
		RequestedNSSAI:       f.in.RequestedNSSAI,
		UESecurityCapability: f.in.Capability,
	}
	if f.in.Type == nas.PeriodicRegistrationUpdating && f.sess.GUTI != nil {
		req.MobileIdentity = *f.sess.GUTI
	}

	plain, err := nas.Encode(req)
	if !sendOrLog(f.log, "RegistrationRequest", err) {
		return Abort
	}
	f.sess.InitialRequest = plain
	b, err := f.sess.EncodeNas(req)
	if !sendOrLog(f.log, "RegistrationRequest", err) {
		return Abort
	}

	pdu, err := ngap.NewBuilder().
		WithDescription(ngap.InitiatingMessage).
		WithProcedure(ngap.InitialUEMessage, ngap.Ignore).
		AddRanUeNgapID(f.sess.RanUeNgapID, ngap.Reject).
		AddNasPduBytes(b, ngap.Reject).
		AddUserLocationInformationNR(f.sess.ULI, ngap.Reject).
		AddProtocolIE(f.in.RRCCause, ngap.Ignore).
		Build()
	if !sendOrLog(f.log, "InitialUEMessage", err) {
		return Abort
	}
	f.send.SendPdu(pdu)
	return f.waitAmf
}

func (f *Registration) waitAmfMessages(in *Incoming) State {
	if in.PDU != nil && in.PDU.Is(ngap.InitiatingMessage, ngap.InitialContextSetup) {
		return f.handleInitialContextSetup()
	}
	if in.NAS == nil {
		f.log.Warnw("unhandled ngap message, message ignored", "received", in.Name())
		return f.waitAmf
	}

	switch m := in.NAS.(type) {
	case *nas.AuthenticationRequest:
		return f.handleAuthenticationRequest(m)
	case *nas.AuthenticationResult:
		f.log.Info("authentication result received")
		return f.waitAmf
	case *nas.AuthenticationReject:
		f.log.Warn("authentication rejected")
		return Abort
	case *nas.RegistrationReject:
		f.log.Warnw("registration rejected", "cause", m.Cause)
		return Abort
	case *nas.IdentityRequest:
		return f.handleIdentityRequest(m)
	case *nas.SecurityModeCommand:
		return f.waitAmf
	case *nas.RegistrationAccept:
		return f.handleRegistrationAccept()
	default:
		f.log.Warnw("message not handled by registration, message ignored", "received", in.Name())
		return f.waitAmf
	}
}

func (f *Registration) handleInitialContextSetup() State {
	pdu, err := ngap.NewBuilder().
		WithDescription(ngap.SuccessfulOutcome).
		WithProcedure(ngap.InitialContextSetup, ngap.Reject).
		AddRanUeNgapID(f.sess.RanUeNgapID, ngap.Ignore).
		AddAmfUeNgapID(f.sess.AmfUeNgapID, ngap.Ignore).
		Build()
	if !sendOrLog(f.log, "InitialContextSetupResponse", err) {
		return Abort
	}
	f.send.SendPdu(pdu)

	if !sendOrLog(f.log, "RegistrationComplete", SendUplinkNas(f.sess, f.send, &nas.RegistrationComplete{})) {
		return Abort
	}
	f.log.Info("registration successfully completed")
	return Complete
}

func (f *Registration) handleRegistrationAccept() State {
	if !sendOrLog(f.log, "RegistrationComplete", SendUplinkNas(f.sess, f.send, &nas.RegistrationComplete{})) {
		return Abort
	}
	f.log.Info("registration successfully completed")
	return Complete
}

func (f *Registration) handleAuthenticationRequest(req *nas.AuthenticationRequest) State {
	resp, err := Authenticate(f.in.Subscriber, f.sess, req)
	if err != nil && !errors.Is(err, crypto.ErrMACFailure) {
		f.log.Errorw("cannot answer authentication request", "error", err)
		return f.waitAmf
	}
	if err != nil {
		f.log.Warnw("network authentication failed", "error", err)
	}
	sendOrLog(f.log, resp.MsgType().String(), SendUplinkNas(f.sess, f.send, resp))
	return f.waitAmf
}

func (f *Registration) handleIdentityRequest(req *nas.IdentityRequest) State {
	var id nas.MobileIdentity
	switch req.IdentityType {
	case nas.IMEI:
		id = nas.MobileIdentity{Type: nas.IMEI, Value: f.in.IMEI}
	case nas.SUCI:
		if f.in.MobileIdentity.Type != nas.SUCI {
			f.log.Errorw("identity not configured", "identity", req.IdentityType.String())
			return f.waitAmf
		}
		id = f.in.MobileIdentity
	default:
		f.log.Errorw("identity request not implemented", "identity", req.IdentityType.String())
		return f.waitAmf
	}

	sendOrLog(f.log, "IdentityResponse", SendUplinkNas(f.sess, f.send, &nas.IdentityResponse{MobileIdentity: id}))
	return f.waitAmf
}

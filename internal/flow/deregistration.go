package flow

import (
	"go.uber.org/zap"

	"uesim/pkg/nas"
	"uesim/pkg/ngap"
)

type DeregistrationInput struct {
	SwitchOff      nas.SwitchOff
	NgKSI          uint8
	MobileIdentity nas.MobileIdentity
}

// Deregistration sends a UE originating deregistration request and waits
// for the accept and the context release that follows it.
type Deregistration struct {
	in   DeregistrationInput
	sess *Session
	send Sender
	log  *zap.SugaredLogger

	waitAccept  State
	waitRelease State
}

func NewDeregistration(in DeregistrationInput, sess *Session, send Sender, log *zap.SugaredLogger) *Deregistration {
	f := &Deregistration{in: in, sess: sess, send: send, log: log}
	f.waitAccept = NewState("waitDeregistrationAccept", f.waitDeregistrationAccept)
	f.waitRelease = NewState("waitUeContextReleaseCommand", f.waitUeContextReleaseCommand)
	return f
}

func (f *Deregistration) Name() string {
	return "deregistration"
}

func (f *Deregistration) Start() State {
	req := &nas.DeregistrationRequestUEOriginating{
		DeregistrationType: nas.DeregistrationType{
			SwitchOff:  f.in.SwitchOff,
			AccessType: nas.Access3GPP,
		},
		NgKSI:          nas.NasKeySetIdentifier{Tsc: nas.NativeSecurityContext, Ksi: f.in.NgKSI},
		MobileIdentity: f.in.MobileIdentity,
	}
	if !sendOrLog(f.log, "DeregistrationRequest", SendUplinkNas(f.sess, f.send, req)) {
		return Abort
	}
	return f.waitAccept
}

func (f *Deregistration) waitDeregistrationAccept(in *Incoming) State {
	if in.PDU == nil || !in.PDU.Is(ngap.InitiatingMessage, ngap.DownlinkNASTransport) {
		f.log.Warnw("bad message, DownlinkNASTransport is expected. message ignored", "received", in.Name())
		return f.waitAccept
	}
	if in.NAS == nil {
		f.log.Warnw("bad message, nas pdu is missing. message ignored", "received", in.Name())
		return f.waitAccept
	}
	if _, ok := in.NAS.(*nas.DeregistrationAcceptUEOriginating); !ok {
		f.log.Warnw("bad message, DeregistrationAccept is expected. message ignored", "received", in.Name())
		return f.waitAccept
	}
	return f.waitRelease
}

func (f *Deregistration) waitUeContextReleaseCommand(in *Incoming) State {
	if in.PDU == nil || !in.PDU.Is(ngap.InitiatingMessage, ngap.UEContextRelease) {
		f.log.Warnw("bad message, UEContextReleaseCommand is expected. message ignored", "received", in.Name())
		return f.waitRelease
	}
	if !sendOrLog(f.log, "UEContextReleaseComplete", SendUEContextReleaseComplete(f.sess, f.send)) {
		return Abort
	}
	f.log.Info("deregistration complete")
	return Complete
}

package ue

import (
	"errors"
	"time"

	"uesim/internal/crypto"
	"uesim/internal/flow"
	"uesim/internal/timer"
	"uesim/pkg/nas"
)

var (
	errNoKamf          = errors.New("no Kamf, authentication has not run")
	errCapMismatch     = errors.New("replayed security capabilities do not match")
	errIntegrity       = errors.New("integrity check failed")
	errNullIntegrity   = errors.New("null integrity is not allowed")
	errIntegrityNotCap = errors.New("integrity algorithm not in UE capabilities")
)

// mmHandler is the mobility management router for one inbound message.
type mmHandler struct {
	u  *UE
	in *flow.Incoming
	p  *nas.Protected
}

var _ nas.Handler = (*mmHandler)(nil)

func (h *mmHandler) HandleAuthenticationRequest(m *nas.AuthenticationRequest) bool {
	u := h.u
	if u.activeIs("registration") {
		u.deliver(h.in)
		return true
	}
	resp, err := flow.Authenticate(u.opts.Subscriber, &u.sess, m)
	switch {
	case errors.Is(err, crypto.ErrMACFailure):
		u.log.Warnw("network authentication failed", "error", err)
	case err != nil:
		u.log.Errorw("cannot answer authentication request", "error", err)
		return true
	}
	h.sendNas(resp)
	return true
}

func (h *mmHandler) HandleAuthenticationResult(m *nas.AuthenticationResult) bool {
	if !h.u.deliver(h.in) {
		h.u.log.Infow("authentication result received", "ngKSI", m.NgKSI.Ksi)
	}
	return true
}

func (h *mmHandler) HandleAuthenticationResponse(*nas.AuthenticationResponse) bool {
	h.u.log.Warn("authentication response received from the network, message ignored")
	return true
}

func (h *mmHandler) HandleAuthenticationReject(*nas.AuthenticationReject) bool {
	u := h.u
	u.log.Warn("authentication rejected by the network")
	u.sess.Security = nil
	u.sess.Kamf = nil
	u.sess.NgKSI = nas.NoKeyAvailable
	u.timers.Get(timer.T3510).Stop()
	u.switchState(MmDeregistered, MmSubNA)
	u.deliver(h.in)
	return true
}

func (h *mmHandler) HandleRegistrationReject(m *nas.RegistrationReject) bool {
	u := h.u
	u.log.Warnw("registration rejected", "cause", m.Cause)
	switch m.Cause {
	case nas.CauseIllegalUE, nas.CauseIllegalME, nas.Cause5GSServicesNotAllowed:
		u.sess.GUTI = nil
		u.switchState(MmDeregistered, MmSubNA)
	}
	if !u.deliver(h.in) {
		u.log.Warn("registration reject without a registration procedure")
	}
	return true
}

func (h *mmHandler) HandleRegistrationAccept(m *nas.RegistrationAccept) bool {
	u := h.u
	if !u.activeIs("registration") {
		u.log.Warn("registration accept without a registration procedure, message ignored")
		return true
	}
	if m.GUTI != nil {
		guti := *m.GUTI
		u.sess.GUTI = &guti
	}
	if m.T3512 > 0 {
		u.timers.Get(timer.T3512).SetInterval(time.Duration(m.T3512) * time.Second)
	}
	u.deliver(h.in)
	return true
}

func (h *mmHandler) HandleIdentityRequest(m *nas.IdentityRequest) bool {
	if !h.u.deliver(h.in) {
		h.u.log.Warnw("identity request outside a procedure, message ignored", "identity", m.IdentityType.String())
	}
	return true
}

func (h *mmHandler) HandleServiceAccept(*nas.ServiceAccept) bool {
	h.u.log.Info("service accept received")
	h.u.switchCm(CmConnected)
	return true
}

func (h *mmHandler) HandleServiceReject(m *nas.ServiceReject) bool {
	h.u.log.Warnw("service rejected", "cause", m.Cause)
	h.u.switchCm(CmIdle)
	return true
}

func (h *mmHandler) HandleSecurityModeCommand(m *nas.SecurityModeCommand) bool {
	u := h.u
	sc, cause, err := h.securityContext(m)
	if err != nil {
		u.log.Warnw("security mode command rejected", "error", err, "cause", cause)
		h.sendNas(&nas.SecurityModeReject{Cause: cause})
		return true
	}
	u.sess.Security = sc
	u.sess.NgKSI = m.NgKSI.Ksi

	complete := &nas.SecurityModeComplete{NASContainer: u.sess.InitialRequest}
	if m.IMEISVRequested {
		complete.IMEISV = &nas.MobileIdentity{Type: nas.IMEISV, Value: u.opts.IMEI}
	}
	b, err := nas.EncodeProtected(complete, nas.IntegrityProtectedWithNewContext, uint8(sc.ULCount), sc.UplinkMAC())
	if err != nil {
		u.log.Errorw("cannot encode message", "message", "SecurityModeComplete", "error", err)
		return true
	}
	sc.ULCount++
	if err := flow.SendUplinkNasBytes(&u.sess, u.send, b); err != nil {
		u.log.Errorw("cannot send message", "message", "SecurityModeComplete", "error", err)
		return true
	}
	u.log.Infow("security mode complete", "integrity", m.IntegrityAlg, "ciphering", m.CipheringAlg)
	u.deliver(h.in)
	return true
}

func (h *mmHandler) securityContext(m *nas.SecurityModeCommand) (*crypto.SecurityContext, nas.Cause5GMM, error) {
	u := h.u
	if m.ReplayedCapability != u.opts.Capability {
		return nil, nas.CauseUESecurityCapMismatch, errCapMismatch
	}
	if m.IntegrityAlg == crypto.NIA0 {
		return nil, nas.CauseSecurityModeRejected, errNullIntegrity
	}
	if !u.opts.Capability.SupportsIA(m.IntegrityAlg) {
		return nil, nas.CauseUESecurityCapMismatch, errIntegrityNotCap
	}
	if len(u.sess.Kamf) == 0 {
		return nil, nas.CauseSecurityModeRejected, errNoKamf
	}
	sc, err := crypto.NewSecurityContext(m.NgKSI.Ksi, u.sess.Kamf, m.IntegrityAlg, m.CipheringAlg)
	if err != nil {
		return nil, nas.CauseSecurityModeRejected, err
	}
	if !h.p.Verify(sc.DownlinkMAC()) {
		return nil, nas.CauseSecurityModeRejected, errIntegrity
	}
	sc.DLCount = uint32(h.p.Sequence) + 1
	return sc, 0, nil
}

func (h *mmHandler) HandleConfigurationUpdateCommand(m *nas.ConfigurationUpdateCommand) bool {
	u := h.u
	if m.GUTI != nil {
		guti := *m.GUTI
		u.sess.GUTI = &guti
		u.log.Infow("new 5G-GUTI assigned", "guti", guti.Value)
	}
	if m.AcknowledgementRequested {
		h.sendNas(&nas.ConfigurationUpdateComplete{})
	}
	return true
}

func (h *mmHandler) HandleDeregistrationAccept(*nas.DeregistrationAcceptUEOriginating) bool {
	if !h.u.deliver(h.in) {
		h.u.log.Warn("deregistration accept without a deregistration procedure, message ignored")
	}
	return true
}

// HandleDeregistrationRequest answers a network initiated deregistration.
func (h *mmHandler) HandleDeregistrationRequest(m *nas.DeregistrationRequestUETerminated) bool {
	u := h.u
	u.log.Infow("network initiated deregistration", "cause", m.Cause,
		"reRegistrationRequired", m.DeregistrationType.ReRegistrationRequired)
	if u.active != nil {
		u.active.Abort("network initiated deregistration")
		u.finishFlow(true)
	}
	h.sendNas(&nas.DeregistrationAcceptUETerminated{})
	u.deregistered()
	if m.DeregistrationType.ReRegistrationRequired {
		u.switchState(MmDeregistered, DeregNormalService)
	}
	return true
}

func (h *mmHandler) HandleDLNASTransport(*nas.DLNASTransport) bool {
	return false
}

func (h *mmHandler) HandleUplink(nas.Message) bool {
	return false
}

func (h *mmHandler) sendNas(msg nas.Message) {
	if err := flow.SendUplinkNas(&h.u.sess, h.u.send, msg); err != nil {
		h.u.log.Errorw("cannot send message", "message", msg.MsgType().String(), "error", err)
	}
}

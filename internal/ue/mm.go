package ue

import (
	"fmt"

	"uesim/internal/command"
	"uesim/internal/flow"
	"uesim/internal/io"
	"uesim/internal/metrics"
	"uesim/internal/timer"
	"uesim/pkg/nas"
	"uesim/pkg/ngap"
)

// registration attempts before the endpoint gives up, TS 24.501 5.5.1.2.7
const maxAttempts = 5

// cycle runs once per scheduling turn, before the mailbox is read.
func (u *UE) cycle() error {
	switch {
	case u.mm == MmNull:
		u.switchState(MmDeregistered, DeregPlmnSearch)
	case u.mm == MmDeregistered && u.mmSub == DeregPlmnSearch:
		u.switchState(MmDeregistered, DeregNormalService)
	case u.mm == MmDeregistered && u.mmSub == DeregNormalService:
		if u.opts.Autonomous && !u.timers.Get(timer.T3346).IsRunning() {
			u.startRegistration(nas.InitialRegistration, false)
		}
	case u.mm == MmRegisteredInitiated,
		u.mm == MmDeregisteredInitiated,
		u.mm == MmRegistered && u.mmSub == RegNormalService,
		u.mm == MmDeregistered && u.mmSub == MmSubNA:
	default:
		if u.opts.Autonomous {
			return fmt.Errorf("%w: %s/%s", ErrNotImplemented, u.mm, u.mmSub)
		}
	}
	return nil
}

func (u *UE) setState(mm MmState, sub MmSubState) error {
	if !mm.Allows(sub) {
		return fmt.Errorf("%w: %s/%s", ErrIllegalSubstate, mm, sub)
	}
	from, fromSub := u.mm, u.mmSub
	if from == mm && fromSub == sub {
		return nil
	}
	u.mm, u.mmSub = mm, sub
	u.log.Infof("UE switches to state: %s/%s", mm, sub)
	u.log.Debugw("mm transition", "from", string(from)+"/"+string(fromSub), "to", string(mm)+"/"+string(sub))
	metrics.MmTransitions.WithLabelValues(string(from), string(mm)).Inc()

	switch mm {
	case MmRegistered:
		u.switchRm(RmRegistered)
	case MmDeregistered:
		u.switchRm(RmDeregistered)
	}
	return nil
}

// switchState is setState for transitions fixed in code.
func (u *UE) switchState(mm MmState, sub MmSubState) {
	if err := u.setState(mm, sub); err != nil {
		u.log.Errorw("cannot switch state", "error", err)
	}
}

func (u *UE) identity() nas.MobileIdentity {
	if u.sess.GUTI != nil {
		return *u.sess.GUTI
	}
	return nas.MobileIdentity{Type: nas.SUCI, Value: u.opts.SUCI}
}

func (u *UE) startRegistration(t nas.RegistrationTypeValue, followOn bool) {
	if t == nas.InitialRegistration {
		u.sess.Security = nil
		u.sess.NgKSI = nas.NoKeyAvailable
		u.sess.AmfUeNgapID = 0
	}
	in := flow.RegistrationInput{
		Type:           t,
		NgKSI:          u.sess.NgKSI,
		MobileIdentity: nas.MobileIdentity{Type: nas.SUCI, Value: u.opts.SUCI},
		IMEI:           u.opts.IMEI,
		RequestedNSSAI: u.opts.NSSAI,
		Capability:     u.opts.Capability,
		RRCCause:       ngap.RRCMoSignalling,
		Subscriber:     u.opts.Subscriber,
	}
	if followOn {
		in.FollowOn = nas.FollowOnRequestPending
	}

	u.supersede("registration")
	u.log.Infow("sending registration request", "type", t.String())
	u.timers.Get(timer.T3512).Stop()
	u.switchState(MmRegisteredInitiated, MmSubNA)
	u.switchCm(CmConnected)
	u.timers.Get(timer.T3510).Start()
	u.startFlow(flow.NewRegistration(in, &u.sess, u.send, u.log))
}

func (u *UE) startDeregistration(switchOff bool) {
	in := flow.DeregistrationInput{
		SwitchOff:      nas.NormalDeregistration,
		NgKSI:          u.sess.NgKSI,
		MobileIdentity: u.identity(),
	}
	if switchOff {
		in.SwitchOff = nas.SwitchOffDeregistration
	}

	u.supersede("deregistration")
	u.log.Infow("sending deregistration request", "switchOff", switchOff)
	u.timers.Get(timer.T3512).Stop()
	u.timers.Get(timer.T3346).Stop()
	u.switchState(MmDeregisteredInitiated, MmSubNA)
	u.timers.Get(timer.T3521).Start()
	u.startFlow(flow.NewDeregistration(in, &u.sess, u.send, u.log))
}

// supersede aborts the active procedure in favour of a new one named
// next. It must run before the new procedure arms its guard timer, since
// finishing the old one stops the timer of its kind.
func (u *UE) supersede(next string) {
	if u.active == nil {
		return
	}
	u.active.Abort("superseded by " + next)
	u.finishFlow(true)
}

func (u *UE) startFlow(p flow.Procedure) {
	u.supersede(p.Name())
	u.active = flow.Start(p, u.log)
	if u.active.Done() {
		u.finishFlow(false)
	}
}

// deliver feeds in to the active procedure and reports whether there was
// one.
func (u *UE) deliver(in *flow.Incoming) bool {
	if u.active == nil {
		return false
	}
	u.active.Deliver(in)
	if u.active.Done() {
		u.finishFlow(false)
	}
	return true
}

func (u *UE) abortFlow(reason string) {
	if u.active == nil {
		return
	}
	u.active.Abort(reason)
	u.finishFlow(false)
}

func (u *UE) finishFlow(superseded bool) {
	r := u.active
	u.active = nil
	metrics.Procedures.WithLabelValues(r.Name(), r.Result().String()).Inc()

	switch r.Procedure().(type) {
	case *flow.Registration:
		u.timers.Get(timer.T3510).Stop()
		switch {
		case superseded:
		case r.Result() == flow.Completed:
			u.registered()
		case u.mm == MmRegisteredInitiated:
			u.registrationFailed()
		}
	case *flow.Deregistration:
		u.timers.Get(timer.T3521).Stop()
		if !superseded {
			u.deregistered()
		}
	}
}

func (u *UE) registered() {
	u.attempts = 0
	u.switchState(MmRegistered, RegNormalService)
	u.timers.Get(timer.T3346).Stop()
	u.timers.Get(timer.T3512).Start()
}

func (u *UE) registrationFailed() {
	u.attempts++
	if u.attempts >= maxAttempts {
		u.log.Warnw("registration attempts exhausted", "attempts", u.attempts)
		u.switchState(MmDeregistered, MmSubNA)
		return
	}
	u.switchState(MmDeregistered, DeregNormalService)
	u.timers.Get(timer.T3346).Start()
}

// deregistered performs local deregistration.
func (u *UE) deregistered() {
	u.timers.Get(timer.T3512).Stop()
	u.timers.Get(timer.T3510).Stop()
	u.timers.Get(timer.T3521).Stop()
	u.sess.Security = nil
	u.sess.Kamf = nil
	u.sess.NgKSI = nas.NoKeyAvailable
	u.switchState(MmDeregistered, MmSubNA)
	u.switchCm(CmIdle)
}

func (u *UE) onTimerExpire(e *timer.Expired) {
	t := u.timers.Get(e.Code)
	if t == nil || !t.Current(e) {
		u.log.Debugw("stale timer expiry ignored", "timer", e.String())
		return
	}
	metrics.TimerExpiries.WithLabelValues(t.String()).Inc()
	u.log.Infow("timer expired", "timer", t.String())

	if !e.IsMM {
		u.smTimerExpire(t)
		return
	}
	switch e.Code {
	case timer.T3512:
		if u.opts.Autonomous && u.mm == MmRegistered {
			u.startRegistration(nas.PeriodicRegistrationUpdating, false)
		}
	case timer.T3346:
		if u.opts.Autonomous && u.mm == MmDeregistered && u.mmSub == DeregNormalService {
			u.startRegistration(nas.InitialRegistration, false)
		}
	case timer.T3510:
		if u.activeIs("registration") {
			u.abortFlow("T3510 expired")
		}
	case timer.T3521:
		if u.activeIs("deregistration") {
			u.abortFlow("T3521 expired")
		} else if u.mm == MmDeregisteredInitiated {
			u.deregistered()
		}
	}
}

func (u *UE) activeIs(name string) bool {
	return u.active != nil && u.active.Name() == name
}

// executeCommand offers cmd to mobility then session management.
func (u *UE) executeCommand(cmd command.Command) bool {
	if u.mmExecute(cmd) {
		return true
	}
	if u.smExecute(cmd) {
		return true
	}
	u.log.Warnw("invalid command", "command", cmd.Name())
	return false
}

func (u *UE) mmExecute(cmd command.Command) bool {
	switch c := cmd.(type) {
	case command.InitialRegistration:
		u.startRegistration(nas.InitialRegistration, c.FollowOn)
	case command.PeriodicRegistration:
		u.startRegistration(nas.PeriodicRegistrationUpdating, c.FollowOn)
	case command.Deregistration:
		u.startDeregistration(c.SwitchOff)
	default:
		return false
	}
	return true
}

func (u *UE) onConnectionRelease(r *io.ConnectionRelease) {
	u.log.Warnw("connection to core released", "reason", r.String())
	u.abortFlow("connection released")
	u.switchCm(CmIdle)
}

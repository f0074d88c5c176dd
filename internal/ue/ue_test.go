package ue

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uesim/internal/command"
	"uesim/internal/config"
	"uesim/internal/crypto"
	"uesim/internal/io"
	"uesim/internal/metrics"
	"uesim/internal/timer"
	"uesim/pkg/nas"
	"uesim/pkg/ngap"
)

type recorder struct {
	pdus []*ngap.PDU
}

func (r *recorder) SendPdu(p *ngap.PDU) {
	r.pdus = append(r.pdus, p)
}

func (r *recorder) last() *ngap.PDU {
	return r.pdus[len(r.pdus)-1]
}

func testOptions(t *testing.T) Options {
	t.Helper()
	cfg := config.Default()
	cfg.Autonomous = false
	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	opts.CycleInterval = 0
	return opts
}

func newTestUE(t *testing.T, opts Options) (*UE, *recorder) {
	t.Helper()
	rec := &recorder{}
	u := New(opts, rec, zap.NewNop().Sugar())
	t.Cleanup(u.timers.StopAll)
	return u, rec
}

func downlink(t *testing.T, msg nas.Message) *ngap.PDU {
	t.Helper()
	b, err := nas.Encode(msg)
	require.NoError(t, err)
	return downlinkBytes(t, b)
}

func downlinkBytes(t *testing.T, b []byte) *ngap.PDU {
	t.Helper()
	pdu, err := ngap.NewBuilder().
		WithDescription(ngap.InitiatingMessage).
		WithProcedure(ngap.DownlinkNASTransport, ngap.Ignore).
		AddAmfUeNgapID(9, ngap.Reject).
		AddRanUeNgapID(1, ngap.Reject).
		AddNasPduBytes(b, ngap.Reject).
		Build()
	require.NoError(t, err)
	return pdu
}

func releaseCommand(t *testing.T) *ngap.PDU {
	t.Helper()
	pdu, err := ngap.NewBuilder().
		WithDescription(ngap.InitiatingMessage).
		WithProcedure(ngap.UEContextRelease, ngap.Reject).
		AddProtocolIE(ngap.UENGAPIDs{AmfUeNgapID: 9, RanUeNgapID: 1, Pair: true}, ngap.Reject).
		AddProtocolIE(ngap.Cause{Group: ngap.CauseNas, Value: ngap.NasDeregister}, ngap.Ignore).
		Build()
	require.NoError(t, err)
	return pdu
}

func sentNas(t *testing.T, pdu *ngap.PDU) *nas.Protected {
	t.Helper()
	b, ok := pdu.NasPdu()
	require.True(t, ok, "%s carries no NAS PDU", pdu.Name())
	p, err := nas.DecodeProtected(b)
	require.NoError(t, err)
	return p
}

func counter(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func registerUE(t *testing.T, u *UE, rec *recorder) {
	t.Helper()
	assert.True(t, u.executeCommand(command.InitialRegistration{}))
	u.handle(downlink(t, &nas.RegistrationAccept{
		Result: 1,
		GUTI:   &nas.MobileIdentity{Type: nas.GUTI5G, Value: "5g-guti-00101-1"},
		T3512:  3600,
	}))
	require.Equal(t, MmRegistered, u.mm)
}

func TestCycleFromNull(t *testing.T) {
	u, rec := newTestUE(t, testOptions(t))
	assert.Equal(t, MmNull, u.mm)

	require.NoError(t, u.cycle())
	assert.Equal(t, MmDeregistered, u.mm)
	assert.Equal(t, DeregPlmnSearch, u.mmSub)

	require.NoError(t, u.cycle())
	assert.Equal(t, MmDeregistered, u.mm)
	assert.Equal(t, DeregNormalService, u.mmSub)

	// without autonomous mode nothing else happens
	require.NoError(t, u.cycle())
	assert.Equal(t, DeregNormalService, u.mmSub)
	assert.Empty(t, rec.pdus)
}

func TestAutonomousRegistrationOnce(t *testing.T) {
	opts := testOptions(t)
	opts.Autonomous = true
	u, rec := newTestUE(t, opts)

	require.NoError(t, u.cycle())
	require.NoError(t, u.cycle())
	assert.Empty(t, rec.pdus)

	require.NoError(t, u.cycle())
	require.Len(t, rec.pdus, 1)
	assert.Equal(t, "InitialUEMessage", rec.pdus[0].Name())
	assert.Equal(t, MmRegisteredInitiated, u.mm)
	assert.True(t, u.timers.Get(timer.T3510).IsRunning())

	require.NoError(t, u.cycle())
	assert.Len(t, rec.pdus, 1)
}

func TestAutonomousWaitsForBackoff(t *testing.T) {
	opts := testOptions(t)
	opts.Autonomous = true
	u, rec := newTestUE(t, opts)

	u.switchState(MmDeregistered, DeregNormalService)
	u.timers.Get(timer.T3346).Start()
	require.NoError(t, u.cycle())
	assert.Empty(t, rec.pdus)
}

func TestCycleNotImplemented(t *testing.T) {
	opts := testOptions(t)
	opts.Autonomous = true
	u, _ := newTestUE(t, opts)

	require.NoError(t, u.setState(MmRegistered, RegLimitedService))
	assert.ErrorIs(t, u.cycle(), ErrNotImplemented)

	opts.Autonomous = false
	u, _ = newTestUE(t, opts)
	require.NoError(t, u.setState(MmRegistered, RegLimitedService))
	assert.NoError(t, u.cycle())
}

func TestIllegalSubstate(t *testing.T) {
	u, _ := newTestUE(t, testOptions(t))
	assert.ErrorIs(t, u.setState(MmRegistered, DeregPlmnSearch), ErrIllegalSubstate)
	assert.ErrorIs(t, u.setState(MmRegisteredInitiated, RegNormalService), ErrIllegalSubstate)
	assert.Equal(t, MmNull, u.mm)

	assert.True(t, MmDeregistered.Allows(MmSubNA))
	assert.False(t, MmRegistered.Allows(MmSubNA))
}

func TestRegistration(t *testing.T) {
	u, rec := newTestUE(t, testOptions(t))
	before := counter(t, metrics.Procedures.WithLabelValues("registration", "completed"))
	registerUE(t, u, rec)

	require.Len(t, rec.pdus, 2)
	_, ok := sentNas(t, rec.last()).Message.(*nas.RegistrationComplete)
	assert.True(t, ok)
	amf, _ := rec.last().AmfUeNgapID()
	assert.Equal(t, uint64(9), amf)

	assert.Equal(t, RegNormalService, u.mmSub)
	assert.Equal(t, RmRegistered, u.rm)
	assert.Equal(t, CmConnected, u.cm)
	assert.Nil(t, u.active)
	assert.False(t, u.timers.Get(timer.T3510).IsRunning())
	assert.True(t, u.timers.Get(timer.T3512).IsRunning())
	assert.Equal(t, time.Hour, u.timers.Get(timer.T3512).Interval)
	assert.Equal(t, before+1, counter(t, metrics.Procedures.WithLabelValues("registration", "completed")))

	snap := u.snapshot()
	assert.Equal(t, "MM-REGISTERED/REG-NORMAL-SERVICE", snap.MMSub)
	assert.Equal(t, "5g-guti-00101-1", snap.GUTI)
	assert.Equal(t, []string{"T3512"}, snap.Timers)
}

func TestRegistrationReject(t *testing.T) {
	opts := testOptions(t)
	opts.Autonomous = true
	u, rec := newTestUE(t, opts)

	u.executeCommand(command.InitialRegistration{})
	u.handle(downlink(t, &nas.RegistrationReject{Cause: nas.CauseCongestion}))

	assert.Equal(t, MmDeregistered, u.mm)
	assert.Equal(t, DeregNormalService, u.mmSub)
	assert.Equal(t, 1, u.attempts)
	assert.True(t, u.timers.Get(timer.T3346).IsRunning())
	assert.False(t, u.timers.Get(timer.T3510).IsRunning())

	// back-off running, no retry yet
	require.NoError(t, u.cycle())
	assert.Len(t, rec.pdus, 1)
}

func TestRegistrationRejectIllegalUE(t *testing.T) {
	u, _ := newTestUE(t, testOptions(t))
	u.executeCommand(command.InitialRegistration{})
	u.handle(downlink(t, &nas.RegistrationReject{Cause: nas.CauseIllegalUE}))
	assert.Equal(t, MmDeregistered, u.mm)
	assert.Equal(t, MmSubNA, u.mmSub)
	assert.Equal(t, 0, u.attempts)
}

func TestRegistrationGuardTimer(t *testing.T) {
	opts := testOptions(t)
	opts.Timers = map[int]time.Duration{timer.T3510: 20 * time.Millisecond}
	u, _ := newTestUE(t, opts)

	u.executeCommand(command.InitialRegistration{})
	msg, err := u.task.ReceiveTimeout(context.Background(), time.Second)
	require.NoError(t, err)
	exp, ok := msg.(*timer.Expired)
	require.True(t, ok)
	assert.Equal(t, timer.T3510, exp.Code)

	u.handle(exp)
	assert.Nil(t, u.active)
	assert.Equal(t, 1, u.attempts)
	assert.Equal(t, DeregNormalService, u.mmSub)
	assert.True(t, u.timers.Get(timer.T3346).IsRunning())

	// the same expiry again is stale
	u.handle(exp)
	assert.Equal(t, 1, u.attempts)
}

func TestRegistrationSupersededKeepsGuardTimer(t *testing.T) {
	tests := []struct {
		name  string
		first command.Command
		again command.Command
	}{
		{name: "initial twice", first: command.InitialRegistration{}, again: command.InitialRegistration{}},
		{name: "initial then periodic", first: command.InitialRegistration{}, again: command.PeriodicRegistration{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, rec := newTestUE(t, testOptions(t))
			require.True(t, u.executeCommand(tt.first))
			first := u.active
			require.True(t, u.executeCommand(tt.again))

			require.NotNil(t, u.active)
			assert.NotSame(t, first, u.active)
			assert.Equal(t, MmRegisteredInitiated, u.mm)
			assert.True(t, u.timers.Get(timer.T3510).IsRunning())
			assert.Equal(t, 0, u.attempts)
			assert.Len(t, rec.pdus, 2)
		})
	}
}

func TestRegistrationSupersededGuardTimerFires(t *testing.T) {
	opts := testOptions(t)
	opts.Timers = map[int]time.Duration{timer.T3510: 20 * time.Millisecond}
	u, _ := newTestUE(t, opts)

	u.executeCommand(command.InitialRegistration{})
	u.executeCommand(command.InitialRegistration{})
	msg, err := u.task.ReceiveTimeout(context.Background(), time.Second)
	require.NoError(t, err)
	exp, ok := msg.(*timer.Expired)
	require.True(t, ok)
	require.Equal(t, timer.T3510, exp.Code)

	u.handle(exp)
	assert.Nil(t, u.active)
	assert.Equal(t, 1, u.attempts)
	assert.Equal(t, DeregNormalService, u.mmSub)
}

func TestRegistrationAcceptWithoutProcedure(t *testing.T) {
	u, _ := newTestUE(t, testOptions(t))
	before := u.timers.Get(timer.T3512).Interval

	u.handle(downlink(t, &nas.RegistrationAccept{
		Result: 1,
		GUTI:   &nas.MobileIdentity{Type: nas.GUTI5G, Value: "5g-guti-00101-7"},
		T3512:  60,
	}))
	assert.Nil(t, u.sess.GUTI)
	assert.Equal(t, before, u.timers.Get(timer.T3512).Interval)
	assert.Equal(t, MmNull, u.mm)
}

func TestRegistrationAttemptsExhausted(t *testing.T) {
	u, _ := newTestUE(t, testOptions(t))
	for i := 0; i < maxAttempts; i++ {
		u.executeCommand(command.InitialRegistration{})
		u.handle(downlink(t, &nas.RegistrationReject{Cause: nas.CauseCongestion}))
	}
	assert.Equal(t, MmDeregistered, u.mm)
	assert.Equal(t, MmSubNA, u.mmSub)
}

func TestDeregistration(t *testing.T) {
	u, rec := newTestUE(t, testOptions(t))
	registerUE(t, u, rec)
	sent := len(rec.pdus)

	assert.True(t, u.executeCommand(command.Deregistration{SwitchOff: false}))
	require.Len(t, rec.pdus, sent+1)
	req, ok := sentNas(t, rec.last()).Message.(*nas.DeregistrationRequestUEOriginating)
	require.True(t, ok)
	assert.Equal(t, nas.GUTI5G, req.MobileIdentity.Type)
	assert.Equal(t, MmDeregisteredInitiated, u.mm)
	assert.False(t, u.timers.Get(timer.T3512).IsRunning())
	assert.True(t, u.timers.Get(timer.T3521).IsRunning())

	// noise does not advance the procedure
	u.handle(downlink(t, &nas.ServiceAccept{}))
	assert.Equal(t, "waitDeregistrationAccept", u.active.State().Name())

	u.handle(downlink(t, &nas.DeregistrationAcceptUEOriginating{}))
	assert.Equal(t, "waitUeContextReleaseCommand", u.active.State().Name())

	u.handle(releaseCommand(t))
	assert.Equal(t, "UEContextReleaseComplete", rec.last().Name())
	assert.Nil(t, u.active)
	assert.Equal(t, MmDeregistered, u.mm)
	assert.Equal(t, MmSubNA, u.mmSub)
	assert.Equal(t, CmIdle, u.cm)
	assert.Equal(t, RmDeregistered, u.rm)
	assert.False(t, u.timers.Get(timer.T3521).IsRunning())
}

func TestDeregistrationGuardTimer(t *testing.T) {
	opts := testOptions(t)
	opts.Timers = map[int]time.Duration{timer.T3521: 20 * time.Millisecond}
	u, _ := newTestUE(t, opts)

	u.executeCommand(command.Deregistration{SwitchOff: true})
	msg, err := u.task.ReceiveTimeout(context.Background(), time.Second)
	require.NoError(t, err)
	u.handle(msg)

	assert.Nil(t, u.active)
	assert.Equal(t, MmDeregistered, u.mm)
	assert.Equal(t, MmSubNA, u.mmSub)
}

func TestDeregistrationSupersededKeepsGuardTimer(t *testing.T) {
	opts := testOptions(t)
	opts.Timers = map[int]time.Duration{timer.T3521: 20 * time.Millisecond}
	u, rec := newTestUE(t, opts)

	require.True(t, u.executeCommand(command.Deregistration{}))
	require.True(t, u.executeCommand(command.Deregistration{SwitchOff: true}))
	assert.Len(t, rec.pdus, 2)
	assert.Equal(t, MmDeregisteredInitiated, u.mm)
	assert.True(t, u.timers.Get(timer.T3521).IsRunning())

	msg, err := u.task.ReceiveTimeout(context.Background(), time.Second)
	require.NoError(t, err)
	u.handle(msg)
	assert.Nil(t, u.active)
	assert.Equal(t, MmDeregistered, u.mm)
	assert.Equal(t, MmSubNA, u.mmSub)
}

func TestNetworkDeregistration(t *testing.T) {
	u, rec := newTestUE(t, testOptions(t))
	registerUE(t, u, rec)

	u.handle(downlink(t, &nas.DeregistrationRequestUETerminated{
		DeregistrationType: nas.DeregistrationType{ReRegistrationRequired: true, AccessType: nas.Access3GPP},
	}))
	_, ok := sentNas(t, rec.last()).Message.(*nas.DeregistrationAcceptUETerminated)
	assert.True(t, ok)
	assert.Equal(t, MmDeregistered, u.mm)
	assert.Equal(t, DeregNormalService, u.mmSub)
	assert.False(t, u.timers.Get(timer.T3512).IsRunning())
}

func TestDropUnclaimed(t *testing.T) {
	u, rec := newTestUE(t, testOptions(t))
	drops := metrics.DroppedMessages.WithLabelValues("RegistrationComplete")
	before := counter(t, drops)

	u.handle(downlink(t, &nas.RegistrationComplete{}))
	assert.Equal(t, before+1, counter(t, drops))
	assert.Empty(t, rec.pdus)
	assert.Equal(t, MmNull, u.mm)

	garbage := metrics.DroppedMessages.WithLabelValues("DownlinkNASTransport")
	before = counter(t, garbage)
	u.handle(downlinkBytes(t, []byte{0xff, 0x00}))
	assert.Equal(t, before+1, counter(t, garbage))

	other := metrics.DroppedMessages.WithLabelValues("string")
	before = counter(t, other)
	u.handle("hello")
	assert.Equal(t, before+1, counter(t, other))
}

func TestSessionManagementClaimsTransport(t *testing.T) {
	u, _ := newTestUE(t, testOptions(t))
	drops := metrics.DroppedMessages.WithLabelValues("DLNASTransport")
	before := counter(t, drops)
	u.handle(downlink(t, &nas.DLNASTransport{PayloadContainerType: nas.PayloadN1SMInformation, PayloadContainer: []byte{1}}))
	assert.Equal(t, before, counter(t, drops))
}

func securityModeCommand(t *testing.T, u *UE, cap nas.SecurityCapability) (*crypto.SecurityContext, *ngap.PDU) {
	t.Helper()
	amfCtx, err := crypto.NewSecurityContext(1, u.sess.Kamf, crypto.NIA2, 0)
	require.NoError(t, err)
	b, err := nas.EncodeProtected(&nas.SecurityModeCommand{
		IntegrityAlg:       crypto.NIA2,
		NgKSI:              nas.NasKeySetIdentifier{Ksi: 1},
		ReplayedCapability: cap,
		IMEISVRequested:    true,
	}, nas.IntegrityProtectedWithNewContext, 0, amfCtx.DownlinkMAC())
	require.NoError(t, err)
	return amfCtx, downlinkBytes(t, b)
}

func TestSecurityModeCommand(t *testing.T) {
	u, rec := newTestUE(t, testOptions(t))
	u.executeCommand(command.InitialRegistration{})
	u.sess.Kamf = make([]byte, 32)
	u.sess.Kamf[0] = 0x42

	amfCtx, smc := securityModeCommand(t, u, u.opts.Capability)
	u.handle(smc)

	p := sentNas(t, rec.last())
	complete, ok := p.Message.(*nas.SecurityModeComplete)
	require.True(t, ok)
	assert.Equal(t, nas.IntegrityProtectedWithNewContext, p.Header)
	assert.True(t, p.Verify(amfCtx.UplinkMAC()))
	assert.Equal(t, u.sess.InitialRequest, complete.NASContainer)
	require.NotNil(t, complete.IMEISV)
	assert.Equal(t, u.opts.IMEI, complete.IMEISV.Value)

	require.NotNil(t, u.sess.Security)
	assert.Equal(t, uint32(1), u.sess.Security.ULCount)
	assert.Equal(t, uint32(1), u.sess.Security.DLCount)
	assert.Equal(t, "waitAmfMessages", u.active.State().Name())

	// unprotected accept is no longer acceptable
	u.handle(downlink(t, &nas.RegistrationAccept{Result: 1}))
	assert.Equal(t, MmRegisteredInitiated, u.mm)

	amfCtx.DLCount = 1
	b, err := nas.EncodeProtected(&nas.RegistrationAccept{Result: 1}, nas.IntegrityProtected, 1, amfCtx.DownlinkMAC())
	require.NoError(t, err)
	u.handle(downlinkBytes(t, b))
	assert.Equal(t, MmRegistered, u.mm)
	assert.True(t, sentNas(t, rec.last()).Verify(amfCtx.UplinkMAC()))
}

func TestSecurityModeReject(t *testing.T) {
	u, rec := newTestUE(t, testOptions(t))
	u.executeCommand(command.InitialRegistration{})
	u.sess.Kamf = make([]byte, 32)

	_, smc := securityModeCommand(t, u, nas.SecurityCapability{EA: 0xff, IA: 0xff})
	u.handle(smc)

	reject, ok := sentNas(t, rec.last()).Message.(*nas.SecurityModeReject)
	require.True(t, ok)
	assert.Equal(t, nas.CauseUESecurityCapMismatch, reject.Cause)
	assert.Nil(t, u.sess.Security)
}

func TestConfigurationUpdate(t *testing.T) {
	u, rec := newTestUE(t, testOptions(t))
	u.handle(downlink(t, &nas.ConfigurationUpdateCommand{
		AcknowledgementRequested: true,
		GUTI:                     &nas.MobileIdentity{Type: nas.GUTI5G, Value: "5g-guti-2"},
	}))
	require.NotNil(t, u.sess.GUTI)
	assert.Equal(t, "5g-guti-2", u.sess.GUTI.Value)
	_, ok := sentNas(t, rec.last()).Message.(*nas.ConfigurationUpdateComplete)
	assert.True(t, ok)
}

func TestContextReleaseOutsideProcedure(t *testing.T) {
	u, rec := newTestUE(t, testOptions(t))
	registerUE(t, u, rec)

	u.handle(releaseCommand(t))
	assert.Equal(t, "UEContextReleaseComplete", rec.last().Name())
	assert.Equal(t, CmIdle, u.cm)
	assert.Equal(t, MmRegistered, u.mm)
}

func TestConnectionRelease(t *testing.T) {
	u, _ := newTestUE(t, testOptions(t))
	u.executeCommand(command.InitialRegistration{})
	u.handle(&io.ConnectionRelease{})
	assert.Nil(t, u.active)
	assert.Equal(t, CmIdle, u.cm)
	assert.Equal(t, MmDeregistered, u.mm)
}

func TestInvalidCommand(t *testing.T) {
	u, rec := newTestUE(t, testOptions(t))
	assert.False(t, u.executeCommand(command.Unknown{Command: "reboot"}))
	assert.Empty(t, rec.pdus)
}

func TestRunAndAsk(t *testing.T) {
	opts := testOptions(t)
	opts.CycleInterval = 5 * time.Millisecond
	u, _ := newTestUE(t, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- u.Run(ctx) }()

	require.Eventually(t, func() bool {
		snap, err := u.Snapshot(ctx)
		return err == nil && snap.MMSub == "MM-DEREGISTERED/NORMAL-SERVICE"
	}, time.Second, 10*time.Millisecond)

	ok, err := u.Execute(ctx, command.Unknown{Command: "reboot"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = u.Execute(ctx, command.InitialRegistration{})
	require.NoError(t, err)
	assert.True(t, ok)

	snap, err := u.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MM-REGISTERED-INITIATED", snap.MM)
	assert.Equal(t, "registration/waitAmfMessages", snap.Procedure)

	cancel()
	assert.NoError(t, <-done)
}

func TestRunStopsOnModelingGap(t *testing.T) {
	opts := testOptions(t)
	opts.Autonomous = true
	u, _ := newTestUE(t, opts)
	require.NoError(t, u.setState(MmRegistered, RegUpdateNeeded))
	assert.ErrorIs(t, u.Run(context.Background()), ErrNotImplemented)
}

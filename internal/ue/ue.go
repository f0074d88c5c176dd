package ue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"uesim/internal/command"
	"uesim/internal/config"
	"uesim/internal/flow"
	"uesim/internal/io"
	"uesim/internal/metrics"
	"uesim/internal/task"
	"uesim/internal/timer"
	"uesim/pkg/nas"
	"uesim/pkg/ngap"
)

var (
	// ErrNotImplemented stops the endpoint when autonomous mode reaches a
	// state combination without a defined transition.
	ErrNotImplemented  = errors.New("mobility state not implemented")
	ErrIllegalSubstate = errors.New("substate not legal for state")

	errUnexpectedReply = errors.New("unexpected reply from endpoint task")
)

// Options are fixed when the endpoint is created.
type Options struct {
	Subscriber    *flow.Subscriber
	SUCI          string
	IMEI          string
	RanUeNgapID   uint32
	Location      ngap.UserLocationInformationNR
	NSSAI         []nas.SNSSAI
	Capability    nas.SecurityCapability
	Autonomous    bool
	CycleInterval time.Duration
	Timers        map[int]time.Duration
}

func OptionsFromConfig(cfg *config.Config) (Options, error) {
	keys, err := cfg.UE.Keys()
	if err != nil {
		return Options{}, err
	}
	snn, err := cfg.UE.ServingNetwork()
	if err != nil {
		return Options{}, err
	}
	plmn := ngap.PLMN{MCC: cfg.UE.MCC, MNC: cfg.UE.MNC}
	opts := Options{
		Subscriber: &flow.Subscriber{
			SUPI:           cfg.UE.SUPI,
			Identity:       cfg.UE.SUPI,
			Keys:           keys,
			ServingNetwork: snn,
		},
		SUCI:        cfg.UE.SUCI(),
		IMEI:        cfg.UE.IMEI,
		RanUeNgapID: cfg.UE.RanUeNgapID,
		Location: ngap.UserLocationInformationNR{
			NRCGI: ngap.NRCGI{PLMN: plmn, CellID: cfg.UE.Location.CellID},
			TAI:   ngap.TAI{PLMN: plmn, TAC: cfg.UE.Location.TAC},
		},
		Capability:    nas.SecurityCapability{EA: cfg.UE.Capability.EA, IA: cfg.UE.Capability.IA},
		Autonomous:    cfg.Autonomous,
		CycleInterval: cfg.CycleInterval,
		Timers:        cfg.Timers.Intervals(),
	}
	for _, s := range cfg.UE.NSSAI {
		opts.NSSAI = append(opts.NSSAI, nas.SNSSAI{SST: s.SST, SD: s.SD})
	}
	return opts, nil
}

// tick wakes the task loop so that the state machine cycles without
// inbound traffic.
type tick struct{}

// UE is the endpoint context. Everything below is owned by the UE task;
// other goroutines reach it through the mailbox only.
type UE struct {
	opts Options
	task *task.Task
	send flow.Sender
	log  *zap.SugaredLogger

	mm    MmState
	mmSub MmSubState
	cm    CmState
	rm    RmState

	sess     flow.Session
	timers   *timer.Set
	active   *flow.Runner
	attempts int
}

func New(opts Options, send flow.Sender, log *zap.SugaredLogger) *UE {
	u := &UE{
		opts:  opts,
		task:  task.New("ue"),
		send:  send,
		log:   log,
		mm:    MmNull,
		mmSub: MmSubNA,
		cm:    CmIdle,
		rm:    RmDeregistered,
		sess: flow.Session{
			RanUeNgapID: opts.RanUeNgapID,
			ULI:         opts.Location,
			NgKSI:       nas.NoKeyAvailable,
		},
	}
	u.timers = timer.NewSet(u.task, opts.Timers)
	return u
}

// Send posts msg to the endpoint mailbox. Inbound PDUs, connection
// releases and commands all enter here.
func (u *UE) Send(msg any) bool {
	return u.task.Send(msg)
}

// SetupAssociation sends the NG setup request of the gNB the endpoint is
// camped on. The response is only logged.
func (u *UE) SetupAssociation(gnbID uint32, name string) error {
	tai := u.opts.Location.TAI
	return flow.SendNGSetupRequest(u.send, ngap.GlobalRANNodeID{PLMN: tai.PLMN, GNBID: gnbID}, name, tai)
}

// Run executes the endpoint task until ctx is done or the state machine
// hits ErrNotImplemented.
func (u *UE) Run(ctx context.Context) error {
	u.task.Start(ctx, u.loop)
	return u.task.Wait()
}

func (u *UE) loop(ctx context.Context, t *task.Task) error {
	defer u.timers.StopAll()

	if u.opts.CycleInterval > 0 {
		go func() {
			tk := time.NewTicker(u.opts.CycleInterval)
			defer tk.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-tk.C:
					t.Send(tick{})
				}
			}
		}()
	}

	u.log.Infow("UE started", "supi", u.opts.Subscriber.SUPI, "autonomous", u.opts.Autonomous)
	for {
		if err := u.cycle(); err != nil {
			u.log.Errorw("mobility state machine stopped", "error", err)
			return err
		}
		msg, err := t.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		u.handle(msg)
	}
}

func (u *UE) handle(msg any) {
	switch m := msg.(type) {
	case tick:
	case *ngap.PDU:
		u.routeNgap(m)
	case *timer.Expired:
		u.onTimerExpire(m)
	case command.Command:
		u.executeCommand(m)
	case *task.Request:
		u.answer(m)
	case *io.ConnectionRelease:
		u.onConnectionRelease(m)
	default:
		u.drop(fmt.Sprintf("%T", msg), "unknown mailbox message")
	}
}

func (u *UE) answer(req *task.Request) {
	switch b := req.Body.(type) {
	case command.Command:
		req.Reply(u.executeCommand(b))
	case command.StateQuery:
		req.Reply(u.snapshot())
	default:
		u.log.Warnw("unknown request", "request", fmt.Sprintf("%T", req.Body))
		req.Reply(nil)
	}
}

// Execute runs a test command inside the endpoint task and reports whether
// it was recognized.
func (u *UE) Execute(ctx context.Context, cmd command.Command) (bool, error) {
	v, err := task.Ask(ctx, u.task, cmd)
	if err != nil {
		return false, err
	}
	ok, isBool := v.(bool)
	if !isBool {
		return false, errUnexpectedReply
	}
	return ok, nil
}

func (u *UE) Snapshot(ctx context.Context) (*command.Snapshot, error) {
	v, err := task.Ask(ctx, u.task, command.StateQuery{})
	if err != nil {
		return nil, err
	}
	snap, ok := v.(*command.Snapshot)
	if !ok {
		return nil, errUnexpectedReply
	}
	return snap, nil
}

func (u *UE) snapshot() *command.Snapshot {
	s := &command.Snapshot{
		MM:       string(u.mm),
		MMSub:    string(u.mm) + "/" + string(u.mmSub),
		CM:       string(u.cm),
		RM:       string(u.rm),
		Attempts: u.attempts,
	}
	if u.active != nil {
		s.Procedure = u.active.Name() + "/" + u.active.State().Name()
	}
	for _, t := range u.timers.Running() {
		s.Timers = append(s.Timers, t.String())
	}
	if u.sess.GUTI != nil {
		s.GUTI = u.sess.GUTI.Value
	}
	return s
}

func (u *UE) drop(kind, reason string) {
	u.log.Warnw("message dropped", "message", kind, "reason", reason)
	metrics.DroppedMessages.WithLabelValues(kind).Inc()
}

func (u *UE) switchCm(s CmState) {
	if u.cm == s {
		return
	}
	u.log.Infow("UE switches to state", "from", string(u.cm), "to", string(s))
	u.cm = s
}

func (u *UE) switchRm(s RmState) {
	if u.rm == s {
		return
	}
	u.log.Infow("UE switches to state", "from", string(u.rm), "to", string(s))
	u.rm = s
}

package flow

import (
	"fmt"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"uesim/pkg/nas"
	"uesim/pkg/ngap"
)

// Incoming is what a flow step consumes: an NGAP PDU and, when the PDU
// carried one, its decoded NAS message.
type Incoming struct {
	PDU *ngap.PDU
	NAS nas.Message
}

func (in *Incoming) Name() string {
	switch {
	case in == nil:
		return "<nil>"
	case in.PDU == nil && in.NAS == nil:
		return "<empty>"
	case in.PDU == nil:
		return in.NAS.MsgType().String()
	case in.NAS == nil:
		return in.PDU.Name()
	default:
		return in.PDU.Name() + "/" + in.NAS.MsgType().String()
	}
}

// StepFunc consumes the next inbound message and names the step to run on
// the one after.
type StepFunc func(in *Incoming) State

// State is a named step of a procedure. The flow keeps no other position
// marker: the caller stores the returned State and calls it again.
type State struct {
	name string
	step StepFunc
}

var (
	Complete = State{name: "complete"}
	Abort    = State{name: "abort"}
)

func NewState(name string, step StepFunc) State {
	return State{name: name, step: step}
}

func (s State) Name() string {
	return s.name
}

func (s State) String() string {
	return s.name
}

func (s State) IsTerminal() bool {
	return s.step == nil
}

// Next runs the step. Terminal states absorb every input.
func (s State) Next(in *Incoming) State {
	if s.IsTerminal() {
		return s
	}
	return s.step(in)
}

// Procedure is one kind of multi-round-trip exchange. Start sends the
// initiating message and returns the first wait state.
type Procedure interface {
	Name() string
	Start() State
}

type Result int

const (
	Running Result = iota
	Completed
	Aborted
)

func (r Result) String() string {
	switch r {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Runner drives one procedure instance. It is plain data owned by the
// endpoint task and is never called concurrently.
type Runner struct {
	ID    uuid.UUID
	proc  Procedure
	state State
	log   *zap.SugaredLogger
}

func Start(p Procedure, log *zap.SugaredLogger) *Runner {
	r := &Runner{
		ID:   uuid.Must(uuid.NewV4()),
		proc: p,
		log:  log,
	}
	r.log.Infow("procedure started", "procedure", p.Name(), "flow", r.ID.String())
	r.state = p.Start()
	r.logIfDone()
	return r
}

func (r *Runner) Procedure() Procedure {
	return r.proc
}

func (r *Runner) Name() string {
	return r.proc.Name()
}

func (r *Runner) State() State {
	return r.state
}

func (r *Runner) Result() Result {
	switch r.state.name {
	case Complete.name:
		return Completed
	case Abort.name:
		return Aborted
	default:
		return Running
	}
}

func (r *Runner) Done() bool {
	return r.state.IsTerminal()
}

// Deliver feeds in to the current step and reports the result.
func (r *Runner) Deliver(in *Incoming) Result {
	if r.Done() {
		return r.Result()
	}
	r.state = r.state.Next(in)
	r.logIfDone()
	return r.Result()
}

// Abort stops the flow from the outside, e.g. on a guard timer or when it
// is superseded.
func (r *Runner) Abort(reason string) {
	if r.Done() {
		return
	}
	r.log.Warnw("procedure aborted", "procedure", r.proc.Name(), "flow", r.ID.String(), "reason", reason)
	r.state = Abort
}

func (r *Runner) logIfDone() {
	if r.Done() {
		r.log.Infow("procedure finished", "procedure", r.proc.Name(), "flow", r.ID.String(), "result", r.Result().String())
	}
}

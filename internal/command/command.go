package command

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ErrNoCommand = errors.New(`missing "command" field`)
	ErrBadField  = errors.New("bad command field")
)

// Command is a test harness instruction delivered through the endpoint
// mailbox.
type Command interface {
	Name() string
}

type InitialRegistration struct {
	FollowOn bool
}

type PeriodicRegistration struct {
	FollowOn bool
}

type Deregistration struct {
	SwitchOff bool
}

// Unknown is a command name the endpoint does not recognize. It is still
// delivered so that the endpoint reports it as not recognized.
type Unknown struct {
	Command string
}

func (InitialRegistration) Name() string  { return "initial-registration" }
func (PeriodicRegistration) Name() string { return "periodic-registration" }
func (Deregistration) Name() string       { return "deregistration" }
func (u Unknown) Name() string            { return u.Command }

// StateQuery asks the endpoint task for a Snapshot.
type StateQuery struct{}

// Snapshot is a copy of the endpoint state taken inside its task.
type Snapshot struct {
	MM        string
	MMSub     string
	CM        string
	RM        string
	Procedure string
	Timers    []string
	GUTI      string
	Attempts  int
}

func (s *Snapshot) Struct() (*structpb.Struct, error) {
	timers := make([]any, len(s.Timers))
	for i, t := range s.Timers {
		timers[i] = t
	}
	return structpb.NewStruct(map[string]any{
		"mm":        s.MM,
		"mmSub":     s.MMSub,
		"cm":        s.CM,
		"rm":        s.RM,
		"procedure": s.Procedure,
		"timers":    timers,
		"guti":      s.GUTI,
		"attempts":  s.Attempts,
	})
}

func SnapshotFromStruct(st *structpb.Struct) *Snapshot {
	f := st.GetFields()
	s := &Snapshot{
		MM:        f["mm"].GetStringValue(),
		MMSub:     f["mmSub"].GetStringValue(),
		CM:        f["cm"].GetStringValue(),
		RM:        f["rm"].GetStringValue(),
		Procedure: f["procedure"].GetStringValue(),
		GUTI:      f["guti"].GetStringValue(),
		Attempts:  int(f["attempts"].GetNumberValue()),
	}
	for _, v := range f["timers"].GetListValue().GetValues() {
		s.Timers = append(s.Timers, v.GetStringValue())
	}
	return s
}

// Parse reads a command from its wire form:
//
//	{"command": "deregistration", "switchOff": true}
func Parse(st *structpb.Struct) (Command, error) {
	f := st.GetFields()
	v, ok := f["command"]
	if !ok {
		return nil, ErrNoCommand
	}
	name, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, fmt.Errorf("%w: command must be a string", ErrBadField)
	}

	switch name.StringValue {
	case InitialRegistration{}.Name():
		followOn, err := boolField(f, "followOn")
		return InitialRegistration{FollowOn: followOn}, err
	case PeriodicRegistration{}.Name():
		followOn, err := boolField(f, "followOn")
		return PeriodicRegistration{FollowOn: followOn}, err
	case Deregistration{}.Name():
		switchOff, err := boolField(f, "switchOff")
		return Deregistration{SwitchOff: switchOff}, err
	default:
		return Unknown{Command: name.StringValue}, nil
	}
}

// ToStruct is the inverse of Parse.
func ToStruct(c Command) (*structpb.Struct, error) {
	m := map[string]any{"command": c.Name()}
	switch c := c.(type) {
	case InitialRegistration:
		m["followOn"] = c.FollowOn
	case PeriodicRegistration:
		m["followOn"] = c.FollowOn
	case Deregistration:
		m["switchOff"] = c.SwitchOff
	}
	return structpb.NewStruct(m)
}

func boolField(f map[string]*structpb.Value, name string) (bool, error) {
	v, ok := f[name]
	if !ok {
		return false, nil
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a bool", ErrBadField, name)
	}
	return b.BoolValue, nil
}

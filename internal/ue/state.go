package ue

type MmState string

// mobility management states, TS 24.501 5.1.3.2.1
const (
	MmNull                    MmState = "MM-NULL"
	MmDeregistered            MmState = "MM-DEREGISTERED"
	MmRegisteredInitiated     MmState = "MM-REGISTERED-INITIATED"
	MmRegistered              MmState = "MM-REGISTERED"
	MmDeregisteredInitiated   MmState = "MM-DEREGISTERED-INITIATED"
	MmServiceRequestInitiated MmState = "MM-SERVICE-REQUEST-INITIATED"
)

type MmSubState string

const (
	MmSubNA MmSubState = "NA"

	DeregNormalService             MmSubState = "NORMAL-SERVICE"
	DeregLimitedService            MmSubState = "LIMITED-SERVICE"
	DeregAttemptingRegistration    MmSubState = "ATTEMPTING-REGISTRATION"
	DeregPlmnSearch                MmSubState = "PLMN-SEARCH"
	DeregNoSupi                    MmSubState = "NO-SUPI"
	DeregNoCellAvailable           MmSubState = "NO-CELL-AVAILABLE"
	DeregInitialRegistrationNeeded MmSubState = "INITIAL-REGISTRATION-NEEDED"

	RegNormalService                MmSubState = "REG-NORMAL-SERVICE"
	RegNonAllowedService            MmSubState = "NON-ALLOWED-SERVICE"
	RegAttemptingRegistrationUpdate MmSubState = "ATTEMPTING-REGISTRATION-UPDATE"
	RegLimitedService               MmSubState = "REG-LIMITED-SERVICE"
	RegPlmnSearch                   MmSubState = "REG-PLMN-SEARCH"
	RegNoCellAvailable              MmSubState = "REG-NO-CELL-AVAILABLE"
	RegUpdateNeeded                 MmSubState = "UPDATE-NEEDED"
)

var deregisteredSubStates = []MmSubState{
	MmSubNA,
	DeregNormalService,
	DeregLimitedService,
	DeregAttemptingRegistration,
	DeregPlmnSearch,
	DeregNoSupi,
	DeregNoCellAvailable,
	DeregInitialRegistrationNeeded,
}

var registeredSubStates = []MmSubState{
	RegNormalService,
	RegNonAllowedService,
	RegAttemptingRegistrationUpdate,
	RegLimitedService,
	RegPlmnSearch,
	RegNoCellAvailable,
	RegUpdateNeeded,
}

// Allows reports whether sub is a legal substate of s. States without
// substates only allow NA.
func (s MmState) Allows(sub MmSubState) bool {
	var legal []MmSubState
	switch s {
	case MmDeregistered:
		legal = deregisteredSubStates
	case MmRegistered:
		legal = registeredSubStates
	default:
		return sub == MmSubNA
	}
	for _, l := range legal {
		if l == sub {
			return true
		}
	}
	return false
}

type CmState string

const (
	CmIdle      CmState = "CM-IDLE"
	CmConnected CmState = "CM-CONNECTED"
)

type RmState string

const (
	RmDeregistered RmState = "RM-DEREGISTERED"
	RmRegistered   RmState = "RM-REGISTERED"
)

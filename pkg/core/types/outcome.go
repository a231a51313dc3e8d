package types

import "fmt"

// TurnOutcome is the closed classification of one conversational step.
type TurnOutcome string

const (
	OutcomeNormal                        TurnOutcome = "NORMAL"
	OutcomeWrapUp                        TurnOutcome = "WRAP_UP"
	OutcomeGatekeeperAlreadyInterviewed  TurnOutcome = "GATEKEEPER_FAILURE_ALREADY_INTERVIEWED"
	OutcomeGatekeeperInOfficeNotPossible TurnOutcome = "GATEKEEPER_FAILURE_INOFFICE_NOTPOSSIBLE"
	OutcomeCandidateRequestingEndCall    TurnOutcome = "CANDIDATE_REQUESTING_END_CALL"
)

// TurnOutcomes lists every valid outcome, in declaration order.
var TurnOutcomes = []TurnOutcome{
	OutcomeNormal,
	OutcomeWrapUp,
	OutcomeGatekeeperAlreadyInterviewed,
	OutcomeGatekeeperInOfficeNotPossible,
	OutcomeCandidateRequestingEndCall,
}

// Valid reports whether o is one of the closed set.
func (o TurnOutcome) Valid() bool {
	for _, v := range TurnOutcomes {
		if o == v {
			return true
		}
	}
	return false
}

// Terminal reports whether the outcome ends the session.
func (o TurnOutcome) Terminal() bool {
	switch o {
	case OutcomeWrapUp,
		OutcomeGatekeeperAlreadyInterviewed,
		OutcomeGatekeeperInOfficeNotPossible,
		OutcomeCandidateRequestingEndCall:
		return true
	default:
		return false
	}
}

// GatekeeperFailure reports whether the outcome is a gatekeeper rejection.
func (o TurnOutcome) GatekeeperFailure() bool {
	return o == OutcomeGatekeeperAlreadyInterviewed || o == OutcomeGatekeeperInOfficeNotPossible
}

// UnmarshalText rejects values outside the closed set.
func (o *TurnOutcome) UnmarshalText(text []byte) error {
	v := TurnOutcome(text)
	if !v.Valid() {
		return fmt.Errorf("unknown turn_outcome %q", string(text))
	}
	*o = v
	return nil
}

package models

// FlowState is a stage of the multi-factor login scenario.
// States advance strictly forward; Aborted is terminal for failed runs.
type FlowState string

const (
	StateAwaitingLogin            FlowState = "awaiting_login"
	StateAwaitingSecondaryContext FlowState = "awaiting_secondary_context"
	StateAwaitingCode             FlowState = "awaiting_code"
	StateAwaitingMaskedPassword   FlowState = "awaiting_masked_password"
	StateLoggedIn                 FlowState = "logged_in"
	StateAborted                  FlowState = "aborted"
)

// String returns the string representation of the FlowState
func (s FlowState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are possible
func (s FlowState) IsTerminal() bool {
	return s == StateLoggedIn || s == StateAborted
}

// Next returns the state that follows s on success
func (s FlowState) Next() FlowState {
	switch s {
	case StateAwaitingLogin:
		return StateAwaitingSecondaryContext
	case StateAwaitingSecondaryContext:
		return StateAwaitingCode
	case StateAwaitingCode:
		return StateAwaitingMaskedPassword
	case StateAwaitingMaskedPassword:
		return StateLoggedIn
	}
	return s
}

// Package flow implements the onboarding-to-chat conversation step machine.
//
// Each profile carries a step counter that advances 0→1→2→3 and then stays
// at 3 for the life of the profile. The step as it stood before the current
// turn selects which prompt mode handles that turn; screenshot turns bypass
// the machine entirely.
package flow

// Mode identifies which prompt shape handles a turn.
type Mode int

const (
	// ModeGreeting is the very first turn after onboarding: the incoming
	// message is empty and the assistant opens the conversation.
	ModeGreeting Mode = iota
	// ModeFirstFollowup reacts to the user's first real message and asks
	// one more getting-to-know-you question.
	ModeFirstFollowup
	// ModeTransition acknowledges what was learned and pivots to helping,
	// mentioning that filling out settings improves personalization.
	ModeTransition
	// ModeSteady is the terminal state: every turn is direct help.
	ModeSteady
)

// maxStep is the absorbing terminal step.
const maxStep = 3

func (m Mode) String() string {
	switch m {
	case ModeGreeting:
		return "greeting"
	case ModeFirstFollowup:
		return "first-followup"
	case ModeTransition:
		return "transition"
	default:
		return "steady"
	}
}

// Classify returns the mode for a turn given the profile's step before the
// turn and whether the turn carries a non-empty message.
func Classify(step int, hasMessage bool) Mode {
	if !hasMessage {
		return ModeGreeting
	}
	switch {
	case step <= 0:
		return ModeFirstFollowup
	case step == 1:
		return ModeTransition
	default:
		return ModeSteady
	}
}

// Advance returns the step after handling a turn. Greeting turns (no
// message) never advance; everything else advances by one up to the
// terminal step.
func Advance(step int, hasMessage bool) int {
	if !hasMessage {
		if step < 0 {
			return 0
		}
		return step
	}
	if step >= maxStep {
		return maxStep
	}
	if step < 0 {
		step = 0
	}
	return step + 1
}

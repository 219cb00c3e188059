package session

import "time"

// State is the position of a session in the measurement workflow.
type State string

const (
	StateIdle        State = "idle"
	StateCapturing   State = "capturing"   // frame captured, no points yet
	StateAnnotating  State = "annotating"  // points selected
	StateCalibrating State = "calibrating" // points used as calibration reference
	StateMeasuring   State = "measuring"   // points measured with the ratio
	StateSaved       State = "saved"
)

// maxHistory bounds the transition log kept per session.
const maxHistory = 64

// Transition is one recorded state change.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// transition moves the session to state to. The caller holds s.mu.
func (s *Session) transition(to State, action string) {
	if s.state == to && action != ActionStartNewProduct {
		return
	}
	s.history = append(s.history, Transition{From: s.state, To: to, Action: action, At: s.now()})
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	s.state = to
}

// branchAfterAnnotation picks the state that follows a point update.
func (s *Session) branchAfterAnnotation(action string) {
	switch {
	case s.frame == nil:
		s.transition(StateIdle, action)
	case len(s.points) == 0:
		s.transition(StateCapturing, action)
	case s.calibrationMode:
		s.transition(StateAnnotating, action)
		s.transition(StateCalibrating, action)
	case len(s.points) >= 2:
		s.transition(StateAnnotating, action)
		s.transition(StateMeasuring, action)
	default:
		s.transition(StateAnnotating, action)
	}
}

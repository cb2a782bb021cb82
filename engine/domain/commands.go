package domain

// StartDiscoveryCommand asks the worker to start a session for a brand.
type StartDiscoveryCommand struct {
	UserID  string       `json:"user_id"`
	Profile BrandProfile `json:"profile"`
}

// Control actions accepted by SessionControlCommand.
const (
	ControlPause  = "pause"
	ControlResume = "resume"
	ControlCancel = "cancel"
)

// SessionControlCommand pauses, resumes, or cancels a running session.
type SessionControlCommand struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
}

// RefreshCorpusCommand reloads the known-site corpus from the store and
// drops cached provider responses, e.g. after a bulk import.
type RefreshCorpusCommand struct {
	Reason string `json:"reason,omitempty"`
}

// types.go
package matchtypes

import "time"

// Phase is the match's position in its lifecycle state machine.
type Phase string

const (
	PhaseOpen         Phase = "open"
	PhaseFull         Phase = "full"
	PhaseSubmit       Phase = "submit"
	PhaseConfirmation Phase = "confirmation"
	PhasePaused       Phase = "paused"
	PhaseFinished     Phase = "finished"
	PhaseReported     Phase = "reported"
	PhaseSaved        Phase = "saved"
	PhaseSaveError    Phase = "save-error"
	// PhaseStalled is reserved; nothing produces it yet.
	PhaseStalled Phase = "stalled"
)

// Valid reports whether p is a member of the phase set.
func (p Phase) Valid() bool {
	switch p {
	case PhaseOpen, PhaseFull, PhaseSubmit, PhaseConfirmation, PhasePaused,
		PhaseFinished, PhaseReported, PhaseSaved, PhaseSaveError, PhaseStalled:
		return true
	}
	return false
}

// Live reports whether a disconnect during p pauses the match.
func (p Phase) Live() bool {
	return p == PhaseSubmit || p == PhaseConfirmation || p == PhasePaused
}

// PhasePair is the current phase together with the one before it.
type PhasePair struct {
	Current  Phase `json:"current"`
	Previous Phase `json:"previous"`
}

// Match is the match document. Participants holds session ids in join
// order; that order seeds the submission rotation when the match starts.
type Match struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	EndLabel        string     `json:"end_label,omitempty"`
	HostID          string     `json:"host_id"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	MaxParticipants int        `json:"max_participants"`
	ArrowsPerEnd    int        `json:"arrows_per_end"`
	NumEnds         int        `json:"num_ends"`
	CurrentEnd      int        `json:"current_end"`
	CurrentPhase    Phase      `json:"current_state"`
	PreviousPhase   Phase      `json:"previous_state"`

	// SubmissionMap assigns each archer (by user id) the session id of the
	// peer whose arrows they record. Set once when the match starts.
	SubmissionMap map[string]string `json:"submission_map,omitempty"`

	Participants []string `json:"participants"`

	// EquipmentTag is the match-wide equipment class; EquipmentTags holds
	// per-user overrides keyed by user id.
	EquipmentTag  string            `json:"equipment_tag,omitempty"`
	EquipmentTags map[string]string `json:"equipment_tags,omitempty"`
}

// EquipmentFor resolves a user's equipment tag, per-user map first.
func (m *Match) EquipmentFor(userID string) string {
	if tag, ok := m.EquipmentTags[userID]; ok {
		return tag
	}
	return m.EquipmentTag
}

// CreateMatchInput carries the host-supplied details for a new match.
type CreateMatchInput struct {
	Name            string            `json:"name"`
	EndLabel        string            `json:"end_label"`
	HostID          string            `json:"host_id"`
	MaxParticipants int               `json:"max_participants"`
	ArrowsPerEnd    int               `json:"arrows_per_end"`
	NumEnds         int               `json:"num_ends"`
	EquipmentTag    string            `json:"equipment_tag"`
	EquipmentTags   map[string]string `json:"equipment_tags"`
}

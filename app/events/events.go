// Package events defines the broadcast topics and payloads the transport
// layer fans out to connected participants. The coordinator publishes these;
// it never waits on their delivery.
package events

import (
	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	reporttypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/report/domain/types"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
)

const (
	ParticipantJoined = "match.participant.joined"
	ParticipantLeft   = "match.participant.left"
	PhaseChanged      = "match.phase.changed"
	MatchStarted      = "match.started"
	EndSubmitted      = "match.end.submitted"
	EndDecided        = "match.end.decided"
	EndAdvanced       = "match.end.advanced"
	EndReset          = "match.end.reset"
	MatchFinished     = "match.finished"
	ReportReady       = "match.report.ready"
	ReportArchived    = "match.report.archived"
)

// ParticipantChangedPayload announces a join or leave.
type ParticipantChangedPayload struct {
	MatchID string `json:"match_id"`
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	Count   int    `json:"count"`
}

// PhaseChangedPayload announces any phase movement.
type PhaseChangedPayload struct {
	MatchID  string           `json:"match_id"`
	Current  matchtypes.Phase `json:"current"`
	Previous matchtypes.Phase `json:"previous"`
}

// MatchStartedPayload announces the full->submit initialization.
type MatchStartedPayload struct {
	MatchID       string            `json:"match_id"`
	StartedAt     string            `json:"started_at"`
	SubmissionMap map[string]string `json:"submission_map"`
}

// EndSubmittedPayload announces one scorer's arrows landing on their target.
type EndSubmittedPayload struct {
	MatchID      string `json:"match_id"`
	End          int    `json:"end"`
	SubmittedBy  string `json:"submitted_by"`
	TargetUserID string `json:"target_user_id"`
	Complete     bool   `json:"complete"`
}

// EndDecidedPayload announces a single archer's confirm/reject.
type EndDecidedPayload struct {
	MatchID  string `json:"match_id"`
	End      int    `json:"end"`
	UserID   string `json:"user_id"`
	Accepted bool   `json:"accepted"`
}

// EndAdvancedPayload announces the end counter moving forward.
type EndAdvancedPayload struct {
	MatchID string `json:"match_id"`
	End     int    `json:"end"`
}

// ResubmissionNotice tells one submitter what to redo after a rejected end:
// whose arrows they were recording, the arrows as entered, and the end.
type ResubmissionNotice struct {
	RecipientUserID string                    `json:"recipient_user_id"`
	TargetUserID    string                    `json:"target_user_id"`
	TargetFirstName string                    `json:"target_first_name"`
	TargetLastName  string                    `json:"target_last_name"`
	Arrows          []sessiontypes.ScoreEntry `json:"arrows"`
	End             int                       `json:"end"`
}

// EndResetPayload announces a rejected end rolling back.
type EndResetPayload struct {
	MatchID string               `json:"match_id"`
	End     int                  `json:"end"`
	Notices []ResubmissionNotice `json:"notices"`
}

// MatchFinishedPayload announces the final confirmation landing.
type MatchFinishedPayload struct {
	MatchID string `json:"match_id"`
}

// ReportReadyPayload carries the assembled report to the archive writer.
type ReportReadyPayload struct {
	Report reporttypes.MatchReport `json:"report"`
}

// ReportArchivedPayload announces the archive writer's outcome.
type ReportArchivedPayload struct {
	MatchID string `json:"match_id"`
	Saved   bool   `json:"saved"`
	Error   string `json:"error,omitempty"`
}

package participantservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Nock-And-Loose-Club/tenring-server/app/events"
	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
	sessiondb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/repositories"
)

// GetSubmissionForm resolves who the user scores for under the rotation and
// how many arrows the next submission must carry.
func (s *ParticipantService) GetSubmissionForm(ctx context.Context, matchID, userID string) (*SubmissionForm, error) {
	match, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	targetSessionID, ok := match.SubmissionMap[userID]
	if !ok {
		return nil, ErrNoAssignment
	}
	target, err := s.SessionDB.Get(ctx, targetSessionID)
	if err != nil {
		if errors.Is(err, sessiondb.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &SubmissionForm{
		TargetSessionID: target.ID,
		TargetUserID:    target.UserID,
		TargetFirstName: target.FirstName,
		TargetLastName:  target.LastName,
		ArrowsPerEnd:    match.ArrowsPerEnd,
		End:             match.CurrentEnd,
	}, nil
}

// SubmitEndArrows records the current end's arrows onto the archer the user
// scores for. Arrows are stored highest first, each tagged with the
// submitter. A replay of an end already on the sheet is rejected, and the
// submission that completes the end moves the match to confirmation exactly
// once.
func (s *ParticipantService) SubmitEndArrows(ctx context.Context, matchID, userID string, arrows []sessiontypes.Arrow) (*matchtypes.Match, error) {
	match, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.CurrentPhase != matchtypes.PhaseSubmit {
		return nil, phaseError("submit arrows", match.CurrentPhase)
	}
	targetSessionID, ok := match.SubmissionMap[userID]
	if !ok {
		return nil, ErrNoAssignment
	}

	if len(arrows) < match.ArrowsPerEnd {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrTooFewArrows, len(arrows), match.ArrowsPerEnd)
	}
	if len(arrows) > match.ArrowsPerEnd {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrTooManyArrows, len(arrows), match.ArrowsPerEnd)
	}
	for _, arrow := range arrows {
		if !arrow.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidArrowValue, arrow)
		}
	}

	entries := make([]sessiontypes.ScoreEntry, len(arrows))
	for i, arrow := range arrows {
		entries[i] = sessiontypes.ScoreEntry{Score: arrow, SubmittedBy: userID}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score.Rank() > entries[j].Score.Rank()
	})

	// The target's sheet must hold exactly the completed ends; anything
	// longer means this end was already submitted.
	priorCount := (match.CurrentEnd - 1) * match.ArrowsPerEnd
	snapshot, err := s.SessionDB.AppendScores(ctx, targetSessionID, entries, priorCount, match.Participants)
	if err != nil {
		switch {
		case errors.Is(err, sessiondb.ErrSequenceChanged):
			return nil, ErrAlreadySubmitted
		case errors.Is(err, sessiondb.ErrSessionNotFound):
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	complete := endComplete(archersOf(snapshot), match.CurrentEnd, match.ArrowsPerEnd)
	s.logger.InfoContext(ctx, "end arrows submitted",
		slog.String("match_id", matchID),
		slog.String("user_id", userID),
		slog.Int("end", match.CurrentEnd),
		slog.Bool("complete", complete))

	if complete {
		committed, err := s.MatchDB.BeginConfirmation(ctx, matchID, match.CurrentEnd)
		if err != nil {
			return nil, err
		}
		s.recordTransition("begin_confirmation", committed)
		if committed {
			s.publishEvent(ctx, events.PhaseChanged, events.PhaseChangedPayload{
				MatchID:  matchID,
				Current:  matchtypes.PhaseConfirmation,
				Previous: matchtypes.PhaseSubmit,
			})
		}
	}

	target, ok := findSession(snapshot, targetSessionID)
	targetUserID := ""
	if ok {
		targetUserID = target.UserID
	}
	s.publishEvent(ctx, events.EndSubmitted, events.EndSubmittedPayload{
		MatchID:      matchID,
		End:          match.CurrentEnd,
		SubmittedBy:  userID,
		TargetUserID: targetUserID,
		Complete:     complete,
	})
	return s.loadMatch(ctx, matchID)
}

// GetEndTotals assembles the review sheet for the end under confirmation:
// each archer's arrows for the end plus their running total through it.
func (s *ParticipantService) GetEndTotals(ctx context.Context, matchID string) (*EndTotals, error) {
	match, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.CurrentPhase != matchtypes.PhaseConfirmation {
		return nil, phaseError("review end", match.CurrentPhase)
	}

	sessions, err := s.SessionDB.GetMany(ctx, match.Participants)
	if err != nil {
		return nil, err
	}

	totals := &EndTotals{End: match.CurrentEnd}
	for _, archer := range archersOf(sessions) {
		window := archer.EndWindow(match.CurrentEnd, match.ArrowsPerEnd)
		line := ArcherEndTotals{
			SessionID: archer.ID,
			UserID:    archer.UserID,
			FirstName: archer.FirstName,
			LastName:  archer.LastName,
			Arrows:    make([]sessiontypes.Arrow, 0, len(window)),
		}
		for _, entry := range window {
			line.Arrows = append(line.Arrows, entry.Score)
			line.EndTotal += entry.Score.Points()
		}
		// During confirmation the sheet holds exactly the ends shot so far,
		// so the running total is the whole sheet.
		for _, entry := range archer.Scoring.Scores {
			line.RunningTotal += entry.Score.Points()
		}
		totals.Archers = append(totals.Archers, line)
	}
	return totals, nil
}

// endComplete reports whether every archer's sheet covers the given end.
func endComplete(archers []*sessiontypes.Session, end, arrowsPerEnd int) bool {
	for _, archer := range archers {
		if archer.Scoring == nil || len(archer.Scoring.Scores) < end*arrowsPerEnd {
			return false
		}
	}
	return len(archers) > 0
}

func findSession(sessions []*sessiontypes.Session, sessionID string) (*sessiontypes.Session, bool) {
	for _, session := range sessions {
		if session != nil && session.ID == sessionID {
			return session, true
		}
	}
	return nil, false
}

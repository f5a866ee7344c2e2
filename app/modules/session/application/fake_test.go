package sessionservice

import (
	"context"
	"time"

	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	matchdb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/infrastructure/repositories"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
	sessiondb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/repositories"
)

// ------------------------
// Fake Session Repo
// ------------------------

type FakeSessionDB struct {
	trace []string

	CreateFunc        func(ctx context.Context, matchID string, input sessiontypes.CreateSessionInput) (*sessiontypes.Session, int, error)
	GetFunc           func(ctx context.Context, sessionID string) (*sessiontypes.Session, error)
	DeleteFunc        func(ctx context.Context, sessionID string) (int, error)
	RemoveExpiredFunc func(ctx context.Context, sessionID string) (int, error)
}

func NewFakeSessionDB() *FakeSessionDB {
	return &FakeSessionDB{trace: []string{}}
}

func (f *FakeSessionDB) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeSessionDB) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeSessionDB) Create(ctx context.Context, matchID string, input sessiontypes.CreateSessionInput) (*sessiontypes.Session, int, error) {
	f.record("Create")
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, matchID, input)
	}
	return nil, 0, sessiondb.ErrMatchNotFound
}

func (f *FakeSessionDB) Get(ctx context.Context, sessionID string) (*sessiontypes.Session, error) {
	f.record("Get")
	if f.GetFunc != nil {
		return f.GetFunc(ctx, sessionID)
	}
	return nil, sessiondb.ErrSessionNotFound
}

func (f *FakeSessionDB) GetMany(ctx context.Context, sessionIDs []string) ([]*sessiontypes.Session, error) {
	f.record("GetMany")
	return nil, nil
}

func (f *FakeSessionDB) Delete(ctx context.Context, sessionID string) (int, error) {
	f.record("Delete")
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, sessionID)
	}
	return 0, sessiondb.ErrSessionNotFound
}

func (f *FakeSessionDB) SetReady(ctx context.Context, sessionID string, ready bool, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	f.record("SetReady")
	return nil, sessiondb.ErrSessionNotFound
}

func (f *FakeSessionDB) SetConnected(ctx context.Context, sessionID string, connected bool, ttl time.Duration, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	f.record("SetConnected")
	return nil, sessiondb.ErrSessionNotFound
}

func (f *FakeSessionDB) AppendScores(ctx context.Context, targetSessionID string, entries []sessiontypes.ScoreEntry, priorCount int, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	f.record("AppendScores")
	return nil, sessiondb.ErrSessionNotFound
}

func (f *FakeSessionDB) AppendDecision(ctx context.Context, sessionID string, accepted bool, priorCount int, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	f.record("AppendDecision")
	return nil, sessiondb.ErrSessionNotFound
}

func (f *FakeSessionDB) RemoveExpired(ctx context.Context, sessionID string) (int, error) {
	f.record("RemoveExpired")
	if f.RemoveExpiredFunc != nil {
		return f.RemoveExpiredFunc(ctx, sessionID)
	}
	return 0, sessiondb.ErrSessionNotFound
}

var _ sessiondb.SessionDB = (*FakeSessionDB)(nil)

// ------------------------
// Fake Match Repo
// ------------------------

type FakeMatchDB struct {
	trace []string

	GetPhaseFunc func(ctx context.Context, matchID string) (matchtypes.PhasePair, error)
	SetPhaseFunc func(ctx context.Context, matchID string, next matchtypes.Phase) error
}

func NewFakeMatchDB() *FakeMatchDB {
	return &FakeMatchDB{trace: []string{}}
}

func (f *FakeMatchDB) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeMatchDB) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeMatchDB) Create(ctx context.Context, match *matchtypes.Match) error {
	f.record("Create")
	return nil
}

func (f *FakeMatchDB) Get(ctx context.Context, matchID string) (*matchtypes.Match, error) {
	f.record("Get")
	return nil, matchdb.ErrMatchNotFound
}

func (f *FakeMatchDB) Delete(ctx context.Context, matchID string) error {
	f.record("Delete")
	return nil
}

func (f *FakeMatchDB) GetPhase(ctx context.Context, matchID string) (matchtypes.PhasePair, error) {
	f.record("GetPhase")
	if f.GetPhaseFunc != nil {
		return f.GetPhaseFunc(ctx, matchID)
	}
	return matchtypes.PhasePair{}, matchdb.ErrMatchNotFound
}

func (f *FakeMatchDB) SetPhase(ctx context.Context, matchID string, next matchtypes.Phase) error {
	f.record("SetPhase:" + string(next))
	if f.SetPhaseFunc != nil {
		return f.SetPhaseFunc(ctx, matchID, next)
	}
	return nil
}

func (f *FakeMatchDB) ParticipantIDs(ctx context.Context, matchID string) ([]string, error) {
	f.record("ParticipantIDs")
	return nil, nil
}

func (f *FakeMatchDB) ParticipantCount(ctx context.Context, matchID string) (int, error) {
	f.record("ParticipantCount")
	return 0, nil
}

func (f *FakeMatchDB) InitializeMatch(ctx context.Context, matchID string, startedAt time.Time, submissionMap map[string]string) (bool, error) {
	f.record("InitializeMatch")
	return false, nil
}

func (f *FakeMatchDB) BeginConfirmation(ctx context.Context, matchID string, end int) (bool, error) {
	f.record("BeginConfirmation")
	return false, nil
}

func (f *FakeMatchDB) AdvanceEnd(ctx context.Context, matchID string, from int) (bool, error) {
	f.record("AdvanceEnd")
	return false, nil
}

func (f *FakeMatchDB) FinishMatch(ctx context.Context, matchID string, atEnd int) (bool, error) {
	f.record("FinishMatch")
	return false, nil
}

func (f *FakeMatchDB) ResetEnd(ctx context.Context, matchID string, archerSessionIDs []string, keepScores int) (bool, error) {
	f.record("ResetEnd")
	return false, nil
}

func (f *FakeMatchDB) ClaimReport(ctx context.Context, matchID string) (bool, matchtypes.Phase, error) {
	f.record("ClaimReport")
	return false, "", nil
}

var _ matchdb.MatchDB = (*FakeMatchDB)(nil)

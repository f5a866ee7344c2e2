package participantservice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	matchtypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/domain/types"
	matchdb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/infrastructure/repositories"
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
	sessiondb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/repositories"
	"github.com/Nock-And-Loose-Club/tenring-server/app/shared/observability"
	"github.com/Nock-And-Loose-Club/tenring-server/internal/redisdocs"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ------------------------
// Shared in-memory state
// ------------------------

// fakeState holds match and session documents behind one lock, so the fake
// repositories exhibit the same read-your-writes behavior as the store.
type fakeState struct {
	mu       sync.Mutex
	matches  map[string]*matchtypes.Match
	sessions map[string]*sessiontypes.Session
}

func newFakeState() *fakeState {
	return &fakeState{
		matches:  map[string]*matchtypes.Match{},
		sessions: map[string]*sessiontypes.Session{},
	}
}

func cloneMatch(m *matchtypes.Match) *matchtypes.Match {
	if m == nil {
		return nil
	}
	out := *m
	out.Participants = append([]string(nil), m.Participants...)
	if m.SubmissionMap != nil {
		out.SubmissionMap = make(map[string]string, len(m.SubmissionMap))
		for k, v := range m.SubmissionMap {
			out.SubmissionMap[k] = v
		}
	}
	if m.EquipmentTags != nil {
		out.EquipmentTags = make(map[string]string, len(m.EquipmentTags))
		for k, v := range m.EquipmentTags {
			out.EquipmentTags[k] = v
		}
	}
	if m.StartedAt != nil {
		t := *m.StartedAt
		out.StartedAt = &t
	}
	return &out
}

func cloneSession(s *sessiontypes.Session) *sessiontypes.Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Scoring != nil {
		out.Scoring = &sessiontypes.Scoring{
			Scores:        append([]sessiontypes.ScoreEntry(nil), s.Scoring.Scores...),
			EndsConfirmed: append([]bool(nil), s.Scoring.EndsConfirmed...),
		}
	}
	return &out
}

// snapshotLocked resolves session ids to clones; missing ids are skipped,
// matching the batched-read behavior of the store.
func (st *fakeState) snapshotLocked(ids []string) []*sessiontypes.Session {
	out := make([]*sessiontypes.Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := st.sessions[id]; ok {
			out = append(out, cloneSession(s))
		}
	}
	return out
}

// ------------------------
// Fake Match Repo
// ------------------------

type FakeMatchDB struct {
	st    *fakeState
	trace []string

	GetFunc               func(ctx context.Context, matchID string) (*matchtypes.Match, error)
	SetPhaseFunc          func(ctx context.Context, matchID string, next matchtypes.Phase) error
	InitializeMatchFunc   func(ctx context.Context, matchID string, startedAt time.Time, submissionMap map[string]string) (bool, error)
	BeginConfirmationFunc func(ctx context.Context, matchID string, end int) (bool, error)
	AdvanceEndFunc        func(ctx context.Context, matchID string, from int) (bool, error)
	FinishMatchFunc       func(ctx context.Context, matchID string, atEnd int) (bool, error)
	ResetEndFunc          func(ctx context.Context, matchID string, archerSessionIDs []string, keepScores int) (bool, error)
	ClaimReportFunc       func(ctx context.Context, matchID string) (bool, matchtypes.Phase, error)
}

func NewFakeMatchDB(st *fakeState) *FakeMatchDB {
	return &FakeMatchDB{st: st, trace: []string{}}
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
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.st.matches[match.ID] = cloneMatch(match)
	return nil
}

func (f *FakeMatchDB) Get(ctx context.Context, matchID string) (*matchtypes.Match, error) {
	f.record("Get")
	if f.GetFunc != nil {
		return f.GetFunc(ctx, matchID)
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return nil, matchdb.ErrMatchNotFound
	}
	return cloneMatch(match), nil
}

func (f *FakeMatchDB) Delete(ctx context.Context, matchID string) error {
	f.record("Delete")
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return matchdb.ErrMatchNotFound
	}
	for _, sid := range match.Participants {
		delete(f.st.sessions, sid)
	}
	delete(f.st.matches, matchID)
	return nil
}

func (f *FakeMatchDB) GetPhase(ctx context.Context, matchID string) (matchtypes.PhasePair, error) {
	f.record("GetPhase")
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return matchtypes.PhasePair{}, matchdb.ErrMatchNotFound
	}
	return matchtypes.PhasePair{Current: match.CurrentPhase, Previous: match.PreviousPhase}, nil
}

func (f *FakeMatchDB) SetPhase(ctx context.Context, matchID string, next matchtypes.Phase) error {
	f.record("SetPhase:" + string(next))
	if f.SetPhaseFunc != nil {
		return f.SetPhaseFunc(ctx, matchID, next)
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return matchdb.ErrMatchNotFound
	}
	if match.CurrentPhase != next {
		match.PreviousPhase = match.CurrentPhase
		match.CurrentPhase = next
	}
	return nil
}

func (f *FakeMatchDB) ParticipantIDs(ctx context.Context, matchID string) ([]string, error) {
	f.record("ParticipantIDs")
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return nil, matchdb.ErrMatchNotFound
	}
	return append([]string(nil), match.Participants...), nil
}

func (f *FakeMatchDB) ParticipantCount(ctx context.Context, matchID string) (int, error) {
	f.record("ParticipantCount")
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return 0, matchdb.ErrMatchNotFound
	}
	return len(match.Participants), nil
}

func (f *FakeMatchDB) InitializeMatch(ctx context.Context, matchID string, startedAt time.Time, submissionMap map[string]string) (bool, error) {
	f.record("InitializeMatch")
	if f.InitializeMatchFunc != nil {
		return f.InitializeMatchFunc(ctx, matchID, startedAt, submissionMap)
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return false, matchdb.ErrMatchNotFound
	}
	if match.CurrentPhase != matchtypes.PhaseFull {
		return false, nil
	}
	t := startedAt
	match.StartedAt = &t
	match.SubmissionMap = submissionMap
	match.CurrentEnd = 1
	match.PreviousPhase = matchtypes.PhaseFull
	match.CurrentPhase = matchtypes.PhaseSubmit
	return true, nil
}

func (f *FakeMatchDB) BeginConfirmation(ctx context.Context, matchID string, end int) (bool, error) {
	f.record("BeginConfirmation")
	if f.BeginConfirmationFunc != nil {
		return f.BeginConfirmationFunc(ctx, matchID, end)
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return false, matchdb.ErrMatchNotFound
	}
	if match.CurrentPhase != matchtypes.PhaseSubmit || match.CurrentEnd != end {
		return false, nil
	}
	match.PreviousPhase = matchtypes.PhaseSubmit
	match.CurrentPhase = matchtypes.PhaseConfirmation
	return true, nil
}

func (f *FakeMatchDB) AdvanceEnd(ctx context.Context, matchID string, from int) (bool, error) {
	f.record("AdvanceEnd")
	if f.AdvanceEndFunc != nil {
		return f.AdvanceEndFunc(ctx, matchID, from)
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return false, matchdb.ErrMatchNotFound
	}
	if match.CurrentPhase != matchtypes.PhaseConfirmation || match.CurrentEnd != from {
		return false, nil
	}
	match.CurrentEnd++
	match.PreviousPhase = matchtypes.PhaseConfirmation
	match.CurrentPhase = matchtypes.PhaseSubmit
	return true, nil
}

func (f *FakeMatchDB) FinishMatch(ctx context.Context, matchID string, atEnd int) (bool, error) {
	f.record("FinishMatch")
	if f.FinishMatchFunc != nil {
		return f.FinishMatchFunc(ctx, matchID, atEnd)
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return false, matchdb.ErrMatchNotFound
	}
	if match.CurrentPhase != matchtypes.PhaseConfirmation || match.CurrentEnd != atEnd {
		return false, nil
	}
	match.PreviousPhase = matchtypes.PhaseConfirmation
	match.CurrentPhase = matchtypes.PhaseFinished
	return true, nil
}

func (f *FakeMatchDB) ResetEnd(ctx context.Context, matchID string, archerSessionIDs []string, keepScores int) (bool, error) {
	f.record("ResetEnd")
	if f.ResetEndFunc != nil {
		return f.ResetEndFunc(ctx, matchID, archerSessionIDs, keepScores)
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return false, matchdb.ErrMatchNotFound
	}
	if match.CurrentPhase != matchtypes.PhaseConfirmation {
		return false, nil
	}
	for _, sid := range archerSessionIDs {
		session, ok := f.st.sessions[sid]
		if !ok || session.Scoring == nil {
			continue
		}
		if len(session.Scoring.Scores) > keepScores {
			session.Scoring.Scores = session.Scoring.Scores[:keepScores]
		}
		if n := len(session.Scoring.EndsConfirmed); n > 0 {
			session.Scoring.EndsConfirmed = session.Scoring.EndsConfirmed[:n-1]
		}
	}
	match.PreviousPhase = matchtypes.PhaseConfirmation
	match.CurrentPhase = matchtypes.PhaseSubmit
	return true, nil
}

func (f *FakeMatchDB) ClaimReport(ctx context.Context, matchID string) (bool, matchtypes.Phase, error) {
	f.record("ClaimReport")
	if f.ClaimReportFunc != nil {
		return f.ClaimReportFunc(ctx, matchID)
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return false, "", matchdb.ErrMatchNotFound
	}
	observed := match.CurrentPhase
	if observed != matchtypes.PhaseFinished {
		return false, observed, nil
	}
	match.PreviousPhase = matchtypes.PhaseFinished
	match.CurrentPhase = matchtypes.PhaseReported
	return true, observed, nil
}

var _ matchdb.MatchDB = (*FakeMatchDB)(nil)

// ------------------------
// Fake Session Repo
// ------------------------

type FakeSessionDB struct {
	st             *fakeState
	trace          []string
	lastConnectTTL time.Duration

	CreateFunc         func(ctx context.Context, matchID string, input sessiontypes.CreateSessionInput) (*sessiontypes.Session, int, error)
	GetFunc            func(ctx context.Context, sessionID string) (*sessiontypes.Session, error)
	AppendScoresFunc   func(ctx context.Context, targetSessionID string, entries []sessiontypes.ScoreEntry, priorCount int, peerSessionIDs []string) ([]*sessiontypes.Session, error)
	AppendDecisionFunc func(ctx context.Context, sessionID string, accepted bool, priorCount int, peerSessionIDs []string) ([]*sessiontypes.Session, error)
}

func NewFakeSessionDB(st *fakeState) *FakeSessionDB {
	return &FakeSessionDB{st: st, trace: []string{}}
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
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	match, ok := f.st.matches[matchID]
	if !ok {
		return nil, 0, sessiondb.ErrMatchNotFound
	}
	if len(match.Participants) >= match.MaxParticipants {
		return nil, 0, sessiondb.ErrMatchFull
	}
	sessionID := redisdocs.SessionKey(matchID, input.UserID)
	if _, exists := f.st.sessions[sessionID]; exists {
		return nil, 0, sessiondb.ErrDuplicateSession
	}
	session := &sessiontypes.Session{
		ID:          sessionID,
		MatchID:     matchID,
		UserID:      input.UserID,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Affiliation: input.Affiliation,
		Role:        input.Role,
	}
	if input.Role == sessiontypes.RoleArcher {
		session.Scoring = &sessiontypes.Scoring{
			Scores:        []sessiontypes.ScoreEntry{},
			EndsConfirmed: []bool{},
		}
	}
	f.st.sessions[sessionID] = session
	match.Participants = append(match.Participants, sessionID)
	return cloneSession(session), len(match.Participants), nil
}

func (f *FakeSessionDB) Get(ctx context.Context, sessionID string) (*sessiontypes.Session, error) {
	f.record("Get")
	if f.GetFunc != nil {
		return f.GetFunc(ctx, sessionID)
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	session, ok := f.st.sessions[sessionID]
	if !ok {
		return nil, sessiondb.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (f *FakeSessionDB) GetMany(ctx context.Context, sessionIDs []string) ([]*sessiontypes.Session, error) {
	f.record("GetMany")
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	return f.st.snapshotLocked(sessionIDs), nil
}

func (f *FakeSessionDB) Delete(ctx context.Context, sessionID string) (int, error) {
	f.record("Delete")
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	session, ok := f.st.sessions[sessionID]
	if !ok {
		return 0, sessiondb.ErrSessionNotFound
	}
	delete(f.st.sessions, sessionID)
	match, ok := f.st.matches[session.MatchID]
	if !ok {
		return 0, nil
	}
	match.Participants = removeID(match.Participants, sessionID)
	return len(match.Participants), nil
}

func (f *FakeSessionDB) SetReady(ctx context.Context, sessionID string, ready bool, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	f.record("SetReady")
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	session, ok := f.st.sessions[sessionID]
	if !ok {
		return nil, sessiondb.ErrSessionNotFound
	}
	session.Ready = ready
	return f.st.snapshotLocked(peerSessionIDs), nil
}

func (f *FakeSessionDB) SetConnected(ctx context.Context, sessionID string, connected bool, ttl time.Duration, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	f.record("SetConnected")
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.lastConnectTTL = ttl
	session, ok := f.st.sessions[sessionID]
	if !ok {
		return nil, sessiondb.ErrSessionNotFound
	}
	session.Connected = connected
	return f.st.snapshotLocked(peerSessionIDs), nil
}

func (f *FakeSessionDB) AppendScores(ctx context.Context, targetSessionID string, entries []sessiontypes.ScoreEntry, priorCount int, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	f.record("AppendScores")
	if f.AppendScoresFunc != nil {
		return f.AppendScoresFunc(ctx, targetSessionID, entries, priorCount, peerSessionIDs)
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	session, ok := f.st.sessions[targetSessionID]
	if !ok || session.Scoring == nil {
		return nil, sessiondb.ErrSessionNotFound
	}
	if len(session.Scoring.Scores) != priorCount {
		return nil, sessiondb.ErrSequenceChanged
	}
	session.Scoring.Scores = append(session.Scoring.Scores, entries...)
	return f.st.snapshotLocked(peerSessionIDs), nil
}

func (f *FakeSessionDB) AppendDecision(ctx context.Context, sessionID string, accepted bool, priorCount int, peerSessionIDs []string) ([]*sessiontypes.Session, error) {
	f.record("AppendDecision")
	if f.AppendDecisionFunc != nil {
		return f.AppendDecisionFunc(ctx, sessionID, accepted, priorCount, peerSessionIDs)
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	session, ok := f.st.sessions[sessionID]
	if !ok || session.Scoring == nil {
		return nil, sessiondb.ErrSessionNotFound
	}
	if len(session.Scoring.EndsConfirmed) != priorCount {
		return nil, sessiondb.ErrSequenceChanged
	}
	session.Scoring.EndsConfirmed = append(session.Scoring.EndsConfirmed, accepted)
	return f.st.snapshotLocked(peerSessionIDs), nil
}

func (f *FakeSessionDB) RemoveExpired(ctx context.Context, sessionID string) (int, error) {
	f.record("RemoveExpired")
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if _, ok := f.st.sessions[sessionID]; ok {
		return 0, sessiondb.ErrSessionRecreated
	}
	matchID, _, err := redisdocs.SplitSessionKey(sessionID)
	if err != nil {
		return 0, err
	}
	match, ok := f.st.matches[matchID]
	if !ok {
		return 0, sessiondb.ErrMatchNotFound
	}
	match.Participants = removeID(match.Participants, sessionID)
	return len(match.Participants), nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

var _ sessiondb.SessionDB = (*FakeSessionDB)(nil)

// ------------------------
// Fake Publisher
// ------------------------

type publishedMessage struct {
	Topic   string
	Payload []byte
}

type FakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage

	PublishFunc func(topic string, messages ...*message.Message) error
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(topic string, messages ...*message.Message) error {
	if f.PublishFunc != nil {
		return f.PublishFunc(topic, messages...)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range messages {
		f.messages = append(f.messages, publishedMessage{Topic: topic, Payload: msg.Payload})
	}
	return nil
}

func (f *FakePublisher) Close() error { return nil }

// Topics returns the published topic names in order.
func (f *FakePublisher) Topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	for i, m := range f.messages {
		out[i] = m.Topic
	}
	return out
}

// LastPayload returns the most recent payload published on topic.
func (f *FakePublisher) LastPayload(topic string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].Topic == topic {
			return f.messages[i].Payload
		}
	}
	return nil
}

var _ message.Publisher = (*FakePublisher)(nil)

// seedMatch installs a match document directly into the fake state.
func seedMatch(st *fakeState, match *matchtypes.Match) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.matches[match.ID] = cloneMatch(match)
}

// seedSession installs a session document and its index entry directly.
func seedSession(st *fakeState, session *sessiontypes.Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[session.ID] = cloneSession(session)
	if match, ok := st.matches[session.MatchID]; ok {
		match.Participants = append(match.Participants, session.ID)
	}
}

// newTestService wires a coordinator over fresh fakes.
func newTestService() (*ParticipantService, *fakeState, *FakeMatchDB, *FakeSessionDB, *FakePublisher) {
	st := newFakeState()
	matches := NewFakeMatchDB(st)
	sessions := NewFakeSessionDB(st)
	pub := NewFakePublisher()
	svc := NewParticipantService(matches, sessions, pub, discardLogger(), observability.NewTestMetrics(), 0).(*ParticipantService)
	return svc, st, matches, sessions, pub
}

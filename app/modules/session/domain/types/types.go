// types.go
package sessiontypes

import "strconv"

// Role distinguishes scoring participants from observing officials.
type Role string

const (
	RoleArcher Role = "archer"
	RoleJudge  Role = "judge"
)

// MaxMarker is the inner-ten notation. It sorts above a plain 10 but is
// worth the same 10 points.
const MaxMarker = "X"

// Arrow is a single arrow value: "0".."10" or the max marker.
type Arrow string

// Valid reports whether a is a canonical integer 0-10 or the max marker.
// Non-canonical spellings like "+5" or "07" are rejected.
func (a Arrow) Valid() bool {
	if a == MaxMarker {
		return true
	}
	n, err := strconv.Atoi(string(a))
	return err == nil && n >= 0 && n <= 10 && strconv.Itoa(n) == string(a)
}

// Points is the arrow's scoring value.
func (a Arrow) Points() int {
	if a == MaxMarker {
		return 10
	}
	n, _ := strconv.Atoi(string(a))
	return n
}

// Rank orders arrows for display; the max marker outranks a plain 10.
func (a Arrow) Rank() int {
	if a == MaxMarker {
		return 11
	}
	return a.Points()
}

// ScoreEntry is one recorded arrow, tagged with who keyed it in.
type ScoreEntry struct {
	Score       Arrow  `json:"score"`
	SubmittedBy string `json:"submitted_by"`
}

// Scoring is the archer-only part of a session: the append-only score
// sequence and the per-end confirmation decisions. Judge sessions carry no
// Scoring at all, which is how the role variant is kept honest.
type Scoring struct {
	Scores        []ScoreEntry `json:"scores"`
	EndsConfirmed []bool       `json:"ends_confirmed"`
}

// Session is one user's presence on one match. Its ID is its store key.
type Session struct {
	ID          string   `json:"id"`
	MatchID     string   `json:"match_id"`
	UserID      string   `json:"user_id"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Affiliation string   `json:"affiliation"`
	Role        Role     `json:"role"`
	Ready       bool     `json:"ready"`
	Connected   bool     `json:"connected"`
	Scoring     *Scoring `json:"scoring,omitempty"`
}

// IsArcher reports whether the session carries score state.
func (s *Session) IsArcher() bool { return s.Role == RoleArcher }

// DecidedEnd reports whether the archer already recorded a decision for the
// given 1-based end.
func (s *Session) DecidedEnd(end int) bool {
	return s.Scoring != nil && len(s.Scoring.EndsConfirmed) >= end
}

// EndWindow slices this end's arrows out of the full sequence.
func (s *Session) EndWindow(end, arrowsPerEnd int) []ScoreEntry {
	if s.Scoring == nil {
		return nil
	}
	lo := (end - 1) * arrowsPerEnd
	hi := end * arrowsPerEnd
	if lo < 0 || hi > len(s.Scoring.Scores) {
		return nil
	}
	return s.Scoring.Scores[lo:hi]
}

// CreateSessionInput carries the caller-resolved identity for a join.
type CreateSessionInput struct {
	UserID      string `json:"user_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Affiliation string `json:"affiliation"`
	Role        Role   `json:"role"`
}

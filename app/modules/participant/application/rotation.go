package participantservice

import (
	sessiontypes "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/domain/types"
)

// submissionAssignments builds the scorer rotation from the archers in join
// order. The list is rotated one step so the last archer to join records
// for the first, and every other archer records for the one who joined
// after them; nobody records their own arrows unless they shoot alone.
//
// The returned map is keyed by the scorer's user id and holds the session
// id of the archer whose arrows they record.
func submissionAssignments(archers []*sessiontypes.Session) map[string]string {
	if len(archers) == 0 {
		return map[string]string{}
	}
	rotated := make([]*sessiontypes.Session, 0, len(archers))
	rotated = append(rotated, archers[len(archers)-1])
	rotated = append(rotated, archers[:len(archers)-1]...)

	assignments := make(map[string]string, len(archers))
	for i, scorer := range rotated {
		assignments[scorer.UserID] = archers[i].ID
	}
	return assignments
}

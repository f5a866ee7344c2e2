package redisdocs

import (
	"fmt"
	"strings"
)

const (
	matchKeyPrefix   = "match:"
	sessionKeyPrefix = "session:"
)

// MatchKey builds the document key for a match.
func MatchKey(matchID string) string {
	return matchKeyPrefix + matchID
}

// SessionKey builds the document key for a user's session on a match. The
// key doubles as the session id everywhere (participant index, submission
// map), so a user re-joining a match recreates the same key.
func SessionKey(matchID, userID string) string {
	return sessionKeyPrefix + matchID + ":" + userID
}

// SessionKeyPrefix is the prefix the expiry feed filters on.
func SessionKeyPrefix() string { return sessionKeyPrefix }

// SplitSessionKey recovers the match and user ids from a session key.
func SplitSessionKey(key string) (matchID, userID string, err error) {
	rest, ok := strings.CutPrefix(key, sessionKeyPrefix)
	if !ok {
		return "", "", fmt.Errorf("not a session key: %q", key)
	}
	matchID, userID, ok = strings.Cut(rest, ":")
	if !ok || matchID == "" || userID == "" {
		return "", "", fmt.Errorf("malformed session key: %q", key)
	}
	return matchID, userID, nil
}

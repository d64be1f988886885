package collector

import (
	"fmt"
	"strings"
)

type Session string

const (
	FP1              Session = "FP1"
	FP2              Session = "FP2"
	FP3              Session = "FP3"
	SprintQualifying Session = "SPRINT_QUALIFYING"
	Sprint           Session = "SPRINT"
	Qualifying       Session = "QUALIFYING"
	Race             Session = "RACE"
)

var sessionKeywords = map[Session][]string{
	FP1:              {"fp1", "free practice 1"},
	FP2:              {"fp2", "free practice 2"},
	FP3:              {"fp3", "free practice 3"},
	SprintQualifying: {"sprint qualifying", "sprint shootout"},
	Sprint:           {"sprint", "sprint race"},
	Qualifying:       {"quali", "qualifying"},
	Race:             {"race", "grand prix", "gp", "race thread"},
}

// Sessions lists every session in weekend order.
func Sessions() []Session {
	return []Session{FP1, FP2, FP3, SprintQualifying, Sprint, Qualifying, Race}
}

// ParseSession accepts any casing and spaces or dashes in place of
// underscores, so "Sprint Qualifying" and "sprint-qualifying" both work.
func ParseSession(s string) (Session, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	session := Session(normalized)
	if _, ok := sessionKeywords[session]; !ok {
		return "", fmt.Errorf("[Collector] unknown session %q", s)
	}
	return session, nil
}

func (s Session) Keywords() []string {
	return sessionKeywords[s]
}

// SearchQuery joins the session keywords into one Reddit search expression.
func (s Session) SearchQuery() string {
	return strings.Join(s.Keywords(), " OR ")
}

// GroupKey identifies one session of one race weekend, e.g. "2024-7-RACE".
func GroupKey(season, round int, session Session) string {
	return fmt.Sprintf("%d-%d-%s", season, round, session)
}

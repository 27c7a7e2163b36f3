package core

import (
	"sort"

	"github.com/huangsam/rewatch/schema"
)

// rankSessions sorts sessions by total watch time in descending order and
// returns the top 'limit' sessions. Ties break on session ID so repeated
// runs produce the same ordering.
func rankSessions(sessions []schema.Session, limit int) []schema.Session {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].TotalWatchSeconds != sessions[j].TotalWatchSeconds {
			return sessions[i].TotalWatchSeconds > sessions[j].TotalWatchSeconds
		}
		return sessions[i].SessionID < sessions[j].SessionID
	})
	if len(sessions) > limit {
		return sessions[:limit]
	}
	return sessions
}

// rankChurnScores sorts scores by churn risk in descending order and
// returns the top 'limit' scores. Ties break on viewer ID, then horizon.
func rankChurnScores(scores []schema.ChurnScore, limit int) []schema.ChurnScore {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].ChurnRisk != scores[j].ChurnRisk {
			return scores[i].ChurnRisk > scores[j].ChurnRisk
		}
		if scores[i].ViewerID != scores[j].ViewerID {
			return scores[i].ViewerID < scores[j].ViewerID
		}
		return scores[i].Horizon < scores[j].Horizon
	})
	if len(scores) > limit {
		return scores[:limit]
	}
	return scores
}

package core

import (
	"testing"

	"github.com/huangsam/rewatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionWithWatch(id string, watchSeconds float64) schema.Session {
	return schema.Session{SessionID: id, ViewerID: id, TotalWatchSeconds: watchSeconds}
}

func TestRankSessionsOrdering(t *testing.T) {
	sessions := []schema.Session{
		sessionWithWatch("u1-1", 120),
		sessionWithWatch("u2-1", 900),
		sessionWithWatch("u3-1", 300),
	}

	ranked := rankSessions(sessions, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, "u2-1", ranked[0].SessionID)
	assert.Equal(t, "u3-1", ranked[1].SessionID)
	assert.Equal(t, "u1-1", ranked[2].SessionID)
}

func TestRankSessionsLimit(t *testing.T) {
	sessions := []schema.Session{
		sessionWithWatch("u1-1", 120),
		sessionWithWatch("u2-1", 900),
		sessionWithWatch("u3-1", 300),
	}

	ranked := rankSessions(sessions, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "u2-1", ranked[0].SessionID)
	assert.Equal(t, "u3-1", ranked[1].SessionID)
}

// Equal watch times fall back to session ID so repeat runs agree.
func TestRankSessionsTieBreak(t *testing.T) {
	sessions := []schema.Session{
		sessionWithWatch("u2-1", 300),
		sessionWithWatch("u1-1", 300),
		sessionWithWatch("u3-1", 300),
	}

	ranked := rankSessions(sessions, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, "u1-1", ranked[0].SessionID)
	assert.Equal(t, "u2-1", ranked[1].SessionID)
	assert.Equal(t, "u3-1", ranked[2].SessionID)
}

func TestRankSessionsEmpty(t *testing.T) {
	assert.Empty(t, rankSessions(nil, 10))
}

func TestRankChurnScoresOrdering(t *testing.T) {
	scores := []schema.ChurnScore{
		{ViewerID: "u1", Horizon: 7, ChurnRisk: 0.2},
		{ViewerID: "u2", Horizon: 7, ChurnRisk: 0.9},
		{ViewerID: "u3", Horizon: 7, ChurnRisk: 0.5},
	}

	ranked := rankChurnScores(scores, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, "u2", ranked[0].ViewerID)
	assert.Equal(t, "u3", ranked[1].ViewerID)
	assert.Equal(t, "u1", ranked[2].ViewerID)
}

// Ties break on viewer ID first, then horizon.
func TestRankChurnScoresTieBreak(t *testing.T) {
	scores := []schema.ChurnScore{
		{ViewerID: "u2", Horizon: 7, ChurnRisk: 0.5},
		{ViewerID: "u1", Horizon: 30, ChurnRisk: 0.5},
		{ViewerID: "u1", Horizon: 7, ChurnRisk: 0.5},
	}

	ranked := rankChurnScores(scores, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, "u1", ranked[0].ViewerID)
	assert.Equal(t, 7, ranked[0].Horizon)
	assert.Equal(t, "u1", ranked[1].ViewerID)
	assert.Equal(t, 30, ranked[1].Horizon)
	assert.Equal(t, "u2", ranked[2].ViewerID)
}

func TestRankChurnScoresLimit(t *testing.T) {
	scores := []schema.ChurnScore{
		{ViewerID: "u1", Horizon: 7, ChurnRisk: 0.2},
		{ViewerID: "u2", Horizon: 7, ChurnRisk: 0.9},
		{ViewerID: "u3", Horizon: 7, ChurnRisk: 0.5},
	}

	ranked := rankChurnScores(scores, 1)
	require.Len(t, ranked, 1)
	assert.Equal(t, "u2", ranked[0].ViewerID)
}

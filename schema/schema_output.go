package schema

// Risk label constants.
const (
	CriticalValue = "Critical" // Critical risk
	HighValue     = "High"     // High risk
	ModerateValue = "Moderate" // Moderate risk
	LowValue      = "Low"      // Low risk
)

// EnrichedSession adds presentation data to a Session.
type EnrichedSession struct {
	Rank int `json:"rank"`
	Session
}

// EnrichedChurnScore adds presentation data to a ChurnScore.
type EnrichedChurnScore struct {
	Rank  int    `json:"rank"`
	Label string `json:"label"`
	ChurnScore
}

// GetPlainLabel returns a plain text label indicating the risk level
// based on the churn-risk probability. This is the core logic used for
// CSV, JSON, and table printing.
func GetPlainLabel(risk float64) string {
	switch {
	case risk >= 0.8:
		return CriticalValue
	case risk >= 0.6:
		return HighValue
	case risk >= 0.4:
		return ModerateValue
	default:
		return LowValue
	}
}

// EnrichSessions adds rank to a list of sessions, longest watch time first.
func EnrichSessions(sessions []Session) []EnrichedSession {
	output := make([]EnrichedSession, len(sessions))
	for i, s := range sessions {
		output[i] = EnrichedSession{
			Rank:    i + 1,
			Session: s,
		}
	}
	return output
}

// EnrichChurnScores adds rank and risk label to a list of churn scores,
// highest risk first.
func EnrichChurnScores(scores []ChurnScore) []EnrichedChurnScore {
	output := make([]EnrichedChurnScore, len(scores))
	for i, s := range scores {
		output[i] = EnrichedChurnScore{
			Rank:       i + 1,
			Label:      GetPlainLabel(s.ChurnRisk),
			ChurnScore: s,
		}
	}
	return output
}

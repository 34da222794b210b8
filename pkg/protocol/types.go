package protocol

// Player is one roster entry as the server reports it.
type Player struct {
	ID           string `json:"player_id"`
	Pseudonym    string `json:"pseudonym"`
	IsGameMaster bool   `json:"is_game_master"`
	Connected    bool   `json:"connected,omitempty"`
}

// Results is the authoritative end-of-round snapshot. Scores are
// cumulative and replace any prior totals wholesale; the client never
// computes them.
type Results struct {
	Question      string            `json:"question"`
	CorrectAnswer string            `json:"correct_answer"`
	VoteCounts    map[string]int    `json:"vote_counts"`
	FakeAnswers   map[string]string `json:"fake_answers"` // pseudonym -> decoy
	Scores        map[string]int    `json:"scores"`       // player id -> total
}

// QuestionStatus is the redacted view of the current question: non-owner
// clients only ever see text and counters, never the correct answer.
type QuestionStatus struct {
	Text             string `json:"text"`
	SubmissionsCount int    `json:"submissions_count"`
	VotesCount       int    `json:"votes_count"`
}

// SessionState is the full session snapshot returned on join and by the
// state endpoint.
type SessionState struct {
	SessionID       string          `json:"session_id"`
	GameState       string          `json:"game_state"`
	Players         []Player        `json:"players"`
	Scores          map[string]int  `json:"scores"`
	RoundNumber     int             `json:"round_number"`
	CurrentQuestion *QuestionStatus `json:"current_question,omitempty"`
	Answers         []string        `json:"answers,omitempty"`
	Results         *Results        `json:"results,omitempty"`
}

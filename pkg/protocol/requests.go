package protocol

import "time"

// Request and response bodies for the session endpoints. Field names
// mirror the backend JSON exactly.

type CreateSessionRequest struct {
	GameMasterPseudonym string `json:"game_master_pseudonym"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
}

type JoinSessionRequest struct {
	Pseudonym string `json:"pseudonym"`
}

type JoinSessionResponse struct {
	PlayerID     string       `json:"player_id"`
	SessionState SessionState `json:"session_state"`
}

type SubmitQuestionRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type SubmitAnswerRequest struct {
	FakeAnswer string `json:"fake_answer"`
}

type SubmitVoteRequest struct {
	VotedAnswer string `json:"voted_answer"`
}

type EnableAutoModeRequest struct {
	QuestionSetID string         `json:"question_set_id"`
	Timers        map[string]int `json:"timers,omitempty"`
}

type EditQuestionRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type DiceQuestionResponse struct {
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	QuestionIndex int    `json:"question_index"`
	CanEdit       bool   `json:"can_edit"`
}

// MessageResponse is the generic success acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the error body shape; Detail is shown to the user
// verbatim.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Question set endpoints.

type QuestionRow struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

type QuestionSetSummary struct {
	SetID         string    `json:"set_id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type QuestionSetDetail struct {
	SetID          string        `json:"set_id"`
	Name           string        `json:"name"`
	Category       string        `json:"category"`
	Questions      []QuestionRow `json:"questions"`
	TotalQuestions int           `json:"total_questions"`
	CreatedAt      time.Time     `json:"created_at"`
}

type ListQuestionSetsResponse struct {
	QuestionSets []QuestionSetSummary `json:"question_sets"`
}

type UploadQuestionSetResponse struct {
	Message     string             `json:"message"`
	QuestionSet QuestionSetSummary `json:"question_set"`
}

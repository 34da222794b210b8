package protocol

// EventType tags a server-pushed frame. The set is closed on the client
// side; frames carrying any other tag are dropped by the caller.
type EventType string

const (
	EvtConnectionEstablished EventType = "CONNECTION_ESTABLISHED"
	EvtPlayerConnected       EventType = "PLAYER_CONNECTED"
	EvtPlayerDisconnected    EventType = "PLAYER_DISCONNECTED"
	EvtPlayerJoined          EventType = "PLAYER_JOINED"
	EvtQuestionSubmitted     EventType = "QUESTION_SUBMITTED"
	EvtAnswerSubmitted       EventType = "ANSWER_SUBMITTED"
	EvtSubmissionsEnded      EventType = "SUBMISSIONS_ENDED_EARLY"
	EvtVotingStarted         EventType = "VOTING_PHASE_STARTED"
	EvtVoteSubmitted         EventType = "VOTE_SUBMITTED"
	EvtVotingEnded           EventType = "VOTING_ENDED_EARLY"
	EvtResultsReady          EventType = "RESULTS_READY"
	EvtNextRoundStarted      EventType = "NEXT_ROUND_STARTED"
	EvtGameStateUpdate       EventType = "GAME_STATE_UPDATE"
	EvtDiceQuestionSelected  EventType = "DICE_QUESTION_SELECTED"
	EvtQuestionEdited        EventType = "QUESTION_EDITED"
	EvtAutoModeProgress      EventType = "AUTO_MODE_PROGRESS"
	EvtAutoTimerCancelled    EventType = "AUTO_TIMER_CANCELLED"
)

// Event is the decoded form of one inbound frame.
type Event interface{ isEvent() }

type ConnectionEstablished struct {
	PlayerID string `json:"player_id"`
}

type PlayerConnected struct {
	PlayerID string `json:"player_id"`
}

type PlayerDisconnected struct {
	PlayerID string `json:"player_id"`
}

type PlayerJoined struct {
	Player       Player `json:"player"`
	TotalPlayers int    `json:"total_players"`
}

type QuestionSubmitted struct {
	Question    string `json:"question"`
	GameState   string `json:"game_state"`
	RoundNumber int    `json:"round_number"`
}

type AnswerSubmitted struct {
	SubmissionsCount int  `json:"submissions_count"`
	TotalExpected    int  `json:"total_expected"`
	AllSubmitted     bool `json:"all_submitted"`
}

// VotingStarted is the decoded payload of both VOTING_PHASE_STARTED and
// SUBMISSIONS_ENDED_EARLY. The two tags mark different triggers (all
// players submitted vs. the game master cut the phase short) but carry
// the same payload and demand the same transition.
type VotingStarted struct {
	GameState string   `json:"game_state"`
	Answers   []string `json:"answers"`
	Message   string   `json:"message,omitempty"`
}

type VoteSubmitted struct {
	VotesCount   int  `json:"votes_count"`
	TotalPlayers int  `json:"total_players"`
	AllVoted     bool `json:"all_voted"`
}

// ResultsReady is the decoded payload of both RESULTS_READY and
// VOTING_ENDED_EARLY, merged for the same reason as VotingStarted.
type ResultsReady struct {
	GameState   string         `json:"game_state"`
	Results     Results        `json:"results"`
	RoundScores map[string]int `json:"round_scores"`
	Message     string         `json:"message,omitempty"`
}

type NextRoundStarted struct {
	GameState   string `json:"game_state"`
	RoundNumber int    `json:"round_number"`
}

// GameStateUpdate is the automatic mode's coarse patch frame: only fields
// the server filled in are applied.
type GameStateUpdate struct {
	GameState      string         `json:"game_state"`
	Question       string         `json:"question,omitempty"`
	RoundNumber    int            `json:"round_number,omitempty"`
	Answers        []string       `json:"answers,omitempty"`
	Results        *Results       `json:"results,omitempty"`
	RoundScores    map[string]int `json:"round_scores,omitempty"`
	AutomaticMode  bool           `json:"is_automatic_mode"`
	QuestionSource string         `json:"question_source,omitempty"`
}

type DiceQuestionSelected struct {
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	CanEdit        bool   `json:"can_edit"`
	QuestionIndex  int    `json:"question_index"`
	QuestionSource string `json:"question_source"`
}

type QuestionEdited struct {
	Question       string `json:"question"`
	GameState      string `json:"game_state"`
	RoundNumber    int    `json:"round_number"`
	QuestionSource string `json:"question_source"`
}

type AutoModeProgress struct {
	CurrentPhase  string `json:"current_phase"`
	TimeRemaining int    `json:"time_remaining"`
	TotalTime     int    `json:"total_time"`
}

type AutoTimerCancelled struct {
	Message string `json:"message,omitempty"`
}

// Unknown carries the tag of a frame outside the closed set. The caller
// logs and drops it; state never changes.
type Unknown struct {
	Type EventType
}

func (ConnectionEstablished) isEvent() {}
func (PlayerConnected) isEvent()       {}
func (PlayerDisconnected) isEvent()    {}
func (PlayerJoined) isEvent()          {}
func (QuestionSubmitted) isEvent()     {}
func (AnswerSubmitted) isEvent()       {}
func (VotingStarted) isEvent()         {}
func (VoteSubmitted) isEvent()         {}
func (ResultsReady) isEvent()          {}
func (NextRoundStarted) isEvent()      {}
func (GameStateUpdate) isEvent()       {}
func (DiceQuestionSelected) isEvent()  {}
func (QuestionEdited) isEvent()        {}
func (AutoModeProgress) isEvent()      {}
func (AutoTimerCancelled) isEvent()    {}
func (Unknown) isEvent()               {}

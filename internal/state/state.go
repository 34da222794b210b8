package state

import "github.com/triviabluff/client-go/pkg/protocol"

// Phase is the client-visible game phase. Exactly one phase is active at
// a time.
type Phase string

const (
	PhaseWaiting    Phase = "waiting_for_players"
	PhaseSubmission Phase = "submission_phase"
	PhaseVoting     Phase = "voting_phase"
	PhaseResults    Phase = "results_phase"
)

// Question is the client-side view of the current round's question. Answer
// is only ever populated on the game master's client (dice drafts); the
// server never sends it to anyone else.
type Question struct {
	Text             string
	Answer           string
	SubmissionsCount int
	VotesCount       int
	Source           string
	Editable         bool
}

// AutoProgress is the automatic-mode countdown display state.
type AutoProgress struct {
	Phase     string
	Remaining int
	Total     int
}

// State is the full client-side snapshot of one session. It is a value:
// Reduce returns a new State and never mutates shared slices or maps in
// place, so earlier snapshots held by subscribers stay stable.
type State struct {
	SessionID    string
	PlayerID     string
	PlayerName   string
	IsGameMaster bool

	Phase       Phase
	Players     []protocol.Player
	Scores      map[string]int
	RoundNumber int

	CurrentQuestion *Question
	Answers         []string
	Results         *protocol.Results

	AutoMode     bool
	AutoProgress *AutoProgress

	Connected bool
	Loading   bool
	Err       string

	// Rounds in which this client's own submit/vote succeeded. Derived
	// flags below replace per-view booleans, so they survive reconnects.
	SubmittedRound int
	VotedRound     int
}

func New() State {
	return State{
		Phase:  PhaseWaiting,
		Scores: map[string]int{},
	}
}

// HasSubmitted reports whether this client already submitted a fake
// answer for the current round.
func (s State) HasSubmitted() bool {
	return s.RoundNumber > 0 && s.SubmittedRound == s.RoundNumber
}

// HasVoted reports whether this client already voted in the current round.
func (s State) HasVoted() bool {
	return s.RoundNumber > 0 && s.VotedRound == s.RoundNumber
}

// Player looks up a roster entry by id.
func (s State) Player(id string) (protocol.Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return protocol.Player{}, false
}

// Score returns the cumulative score for a player id.
func (s State) Score(id string) int {
	return s.Scores[id]
}

func clonePlayers(ps []protocol.Player) []protocol.Player {
	out := make([]protocol.Player, len(ps))
	copy(out, ps)
	return out
}

func cloneScores(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneQuestion(q *Question) *Question {
	if q == nil {
		return nil
	}
	c := *q
	return &c
}

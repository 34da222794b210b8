// Package fakeserver is an in-process stand-in for the game backend. It
// implements the session endpoints and the push channel faithfully enough
// that the sync core can be exercised end to end without a real server.
package fakeserver

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/triviabluff/client-go/pkg/protocol"
)

const (
	phaseWaiting    = "waiting_for_players"
	phaseSubmission = "submission_phase"
	phaseVoting     = "voting_phase"
	phaseResults    = "results_phase"
)

var (
	errNoQuestion         = errors.New("no active question")
	errNotSubmissionPhase = errors.New("not in submission phase")
	errNotVotingPhase     = errors.New("not in voting phase")
	errGameMasterAnswer   = errors.New("game master cannot submit fake answers")
)

// RoundQuestion is the server-side question, including everything the
// clients must never see before results.
type RoundQuestion struct {
	Text          string
	CorrectAnswer string
	FakeAnswers   map[string]string // player id -> decoy
	Votes         map[string]string // player id -> voted answer
	Source        string
}

// Session is one game instance. Callers synchronize through Room.
type Session struct {
	ID           string
	GameMasterID string
	Players      map[string]*protocol.Player
	joinOrder    []string
	Scores       map[string]int
	RoundNumber  int
	Phase        string
	Current      *RoundQuestion

	AutoMode      bool
	QuestionSetID string
	UsedQuestions map[int]bool
	Timers        map[string]int
}

func NewSession(code, gameMasterPseudonym string) *Session {
	gmID := uuid.NewString()
	gm := &protocol.Player{
		ID:           gmID,
		Pseudonym:    gameMasterPseudonym,
		IsGameMaster: true,
		Connected:    true,
	}
	return &Session{
		ID:            code,
		GameMasterID:  gmID,
		Players:       map[string]*protocol.Player{gmID: gm},
		joinOrder:     []string{gmID},
		Scores:        map[string]int{gmID: 0},
		Phase:         phaseWaiting,
		UsedQuestions: map[int]bool{},
		Timers: map[string]int{
			"submission_timeout": 60,
			"voting_timeout":     30,
			"results_display":    10,
		},
	}
}

func (s *Session) IsGameMaster(playerID string) bool {
	return playerID == s.GameMasterID
}

func (s *Session) pseudonymTaken(pseudonym string) bool {
	for _, p := range s.Players {
		if strings.EqualFold(p.Pseudonym, pseudonym) {
			return true
		}
	}
	return false
}

// AddPlayer joins a new non-owner player. Pseudonyms are unique per
// session, case-insensitively.
func (s *Session) AddPlayer(pseudonym string) (*protocol.Player, error) {
	if s.pseudonymTaken(pseudonym) {
		return nil, fmt.Errorf("pseudonym %q is already taken", pseudonym)
	}
	p := &protocol.Player{
		ID:        uuid.NewString(),
		Pseudonym: pseudonym,
		Connected: true,
	}
	s.Players[p.ID] = p
	s.joinOrder = append(s.joinOrder, p.ID)
	s.Scores[p.ID] = 0
	return p, nil
}

// PlayersInOrder lists roster entries in join order.
func (s *Session) PlayersInOrder() []protocol.Player {
	out := make([]protocol.Player, 0, len(s.joinOrder))
	for _, id := range s.joinOrder {
		out = append(out, *s.Players[id])
	}
	return out
}

func (s *Session) nonOwnerCount() int {
	return len(s.Players) - 1
}

// StartQuestion begins a new round with the given question.
func (s *Session) StartQuestion(text, answer, source string) {
	s.Current = &RoundQuestion{
		Text:          text,
		CorrectAnswer: answer,
		FakeAnswers:   map[string]string{},
		Votes:         map[string]string{},
		Source:        source,
	}
	s.Phase = phaseSubmission
	s.RoundNumber++
}

// SubmitFakeAnswer records one player's decoy.
func (s *Session) SubmitFakeAnswer(playerID, fakeAnswer string) error {
	if s.Current == nil {
		return errNoQuestion
	}
	if s.Phase != phaseSubmission {
		return errNotSubmissionPhase
	}
	if playerID == s.GameMasterID {
		return errGameMasterAnswer
	}
	s.Current.FakeAnswers[playerID] = fakeAnswer
	return nil
}

// AllSubmitted reports whether every non-owner player has a decoy in.
func (s *Session) AllSubmitted() bool {
	return s.Current != nil &&
		s.nonOwnerCount() > 0 &&
		len(s.Current.FakeAnswers) == s.nonOwnerCount()
}

// ShuffledAnswers returns the decoys plus the correct answer in random
// order. Nothing marks which entry is real.
func (s *Session) ShuffledAnswers() []string {
	if s.Current == nil {
		return nil
	}
	answers := make([]string, 0, len(s.Current.FakeAnswers)+1)
	for _, a := range s.Current.FakeAnswers {
		answers = append(answers, a)
	}
	answers = append(answers, s.Current.CorrectAnswer)
	rand.Shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})
	return answers
}

// SubmitVote records one player's vote.
func (s *Session) SubmitVote(playerID, votedAnswer string) error {
	if s.Current == nil {
		return errNoQuestion
	}
	if s.Phase != phaseVoting {
		return errNotVotingPhase
	}
	s.Current.Votes[playerID] = votedAnswer
	return nil
}

// AllVoted reports whether every non-owner player has voted.
func (s *Session) AllVoted() bool {
	return s.Current != nil &&
		s.nonOwnerCount() > 0 &&
		len(s.Current.Votes) == s.nonOwnerCount()
}

func (s *Session) voteCounts() map[string]int {
	counts := map[string]int{}
	for _, voted := range s.Current.Votes {
		counts[voted]++
	}
	return counts
}

// CalculateScores applies the round's scoring: one point per vote a decoy
// fooled someone into, and one point for voting for the correct answer.
// Returns the per-player round deltas.
func (s *Session) CalculateScores() map[string]int {
	if s.Current == nil {
		return map[string]int{}
	}
	counts := s.voteCounts()
	roundScores := map[string]int{}

	for playerID, fake := range s.Current.FakeAnswers {
		got := counts[fake]
		s.Scores[playerID] += got
		roundScores[playerID] = got
	}
	for playerID, voted := range s.Current.Votes {
		if voted == s.Current.CorrectAnswer {
			s.Scores[playerID]++
			roundScores[playerID]++
		}
	}
	return roundScores
}

// Results builds the authoritative end-of-round snapshot.
func (s *Session) Results() protocol.Results {
	if s.Current == nil {
		return protocol.Results{}
	}
	fakes := map[string]string{}
	for pid, answer := range s.Current.FakeAnswers {
		fakes[s.Players[pid].Pseudonym] = answer
	}
	scores := make(map[string]int, len(s.Scores))
	for k, v := range s.Scores {
		scores[k] = v
	}
	return protocol.Results{
		Question:      s.Current.Text,
		CorrectAnswer: s.Current.CorrectAnswer,
		VoteCounts:    s.voteCounts(),
		FakeAnswers:   fakes,
		Scores:        scores,
	}
}

// ResetForNextRound discards the round and returns to waiting. Roster and
// cumulative scores carry over.
func (s *Session) ResetForNextRound() {
	s.Current = nil
	s.Phase = phaseWaiting
}

// Snapshot builds the redacted session view sent to clients. The correct
// answer never appears here; answers only appear once voting has started
// and results only once the round has ended.
func (s *Session) Snapshot() protocol.SessionState {
	scores := make(map[string]int, len(s.Scores))
	for k, v := range s.Scores {
		scores[k] = v
	}
	snap := protocol.SessionState{
		SessionID:   s.ID,
		GameState:   s.Phase,
		Players:     s.PlayersInOrder(),
		Scores:      scores,
		RoundNumber: s.RoundNumber,
	}
	if s.Current != nil && s.Phase != phaseWaiting {
		snap.CurrentQuestion = &protocol.QuestionStatus{
			Text:             s.Current.Text,
			SubmissionsCount: len(s.Current.FakeAnswers),
			VotesCount:       len(s.Current.Votes),
		}
		switch s.Phase {
		case phaseVoting:
			snap.Answers = s.ShuffledAnswers()
		case phaseResults:
			r := s.Results()
			snap.Results = &r
		}
	}
	return snap
}

// Room pairs a session with its push connections. The session mutex keeps
// handler mutations serialized; connections have their own lock so
// broadcasts never block game logic.
type Room struct {
	mu      sync.Mutex
	session *Session

	connMu sync.Mutex
	conns  map[string]chan []byte
}

func NewRoom(s *Session) *Room {
	return &Room{
		session: s,
		conns:   make(map[string]chan []byte),
	}
}

// Do runs fn with exclusive access to the session.
func (r *Room) Do(fn func(*Session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.session)
}

// Attach registers a player's outbox for pushed frames.
func (r *Room) Attach(playerID string) chan []byte {
	out := make(chan []byte, 16)
	r.connMu.Lock()
	if prior, ok := r.conns[playerID]; ok {
		// One connection per session/player pair; replace the old handle.
		close(prior)
	}
	r.conns[playerID] = out
	r.connMu.Unlock()
	return out
}

// Detach removes a player's outbox, if it is still the registered one.
func (r *Room) Detach(playerID string, out chan []byte) {
	r.connMu.Lock()
	if r.conns[playerID] == out {
		delete(r.conns, playerID)
		close(out)
	}
	r.connMu.Unlock()
}

// Broadcast pushes one frame to every connected player.
func (r *Room) Broadcast(t protocol.EventType, data any) {
	r.BroadcastExcept("", t, data)
}

// BroadcastExcept pushes one frame to everyone but the named player. Slow
// consumers are dropped rather than stalling the room.
func (r *Room) BroadcastExcept(exceptPlayerID string, t protocol.EventType, data any) {
	frame, err := protocol.Encode(t, data)
	if err != nil {
		return
	}
	r.connMu.Lock()
	defer r.connMu.Unlock()
	for pid, ch := range r.conns {
		if pid == exceptPlayerID {
			continue
		}
		select {
		case ch <- frame:
		default:
			close(ch)
			delete(r.conns, pid)
		}
	}
}

// Send pushes one frame to a single player.
func (r *Room) Send(playerID string, t protocol.EventType, data any) {
	frame, err := protocol.Encode(t, data)
	if err != nil {
		return
	}
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if ch, ok := r.conns[playerID]; ok {
		select {
		case ch <- frame:
		default:
		}
	}
}

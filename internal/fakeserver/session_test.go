package fakeserver

import (
	"errors"
	"testing"
)

func TestNewSession_SeedsGameMaster(t *testing.T) {
	s := NewSession("ABC123", "Alice")

	if s.Phase != phaseWaiting {
		t.Fatalf("want waiting phase, got %s", s.Phase)
	}
	gm, ok := s.Players[s.GameMasterID]
	if !ok || !gm.IsGameMaster || gm.Pseudonym != "Alice" {
		t.Fatalf("game master not seeded: %+v", gm)
	}
	if s.Scores[s.GameMasterID] != 0 {
		t.Fatalf("scores not initialized: %v", s.Scores)
	}
}

func TestAddPlayer_PseudonymUniqueness(t *testing.T) {
	s := NewSession("ABC123", "Alice")

	if _, err := s.AddPlayer("Bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddPlayer("bob"); err == nil {
		t.Fatal("case-insensitive duplicate must be refused")
	}
	if _, err := s.AddPlayer("Alice"); err == nil {
		t.Fatal("game master's pseudonym must be refused")
	}
	if len(s.Players) != 2 {
		t.Fatalf("want 2 players, got %d", len(s.Players))
	}
}

func TestSubmitFakeAnswer_PhaseAndRoleGuards(t *testing.T) {
	s := NewSession("ABC123", "Alice")
	bob, _ := s.AddPlayer("Bob")

	if err := s.SubmitFakeAnswer(bob.ID, "Lyon"); !errors.Is(err, errNoQuestion) {
		t.Fatalf("want errNoQuestion, got %v", err)
	}

	s.StartQuestion("Capital of France?", "Paris", "manual")
	if err := s.SubmitFakeAnswer(s.GameMasterID, "Lyon"); !errors.Is(err, errGameMasterAnswer) {
		t.Fatalf("want errGameMasterAnswer, got %v", err)
	}
	if err := s.SubmitFakeAnswer(bob.ID, "Lyon"); err != nil {
		t.Fatal(err)
	}

	s.Phase = phaseVoting
	if err := s.SubmitFakeAnswer(bob.ID, "Nice"); !errors.Is(err, errNotSubmissionPhase) {
		t.Fatalf("want errNotSubmissionPhase, got %v", err)
	}
}

func TestAllSubmittedAndAllVoted_CountNonOwnersOnly(t *testing.T) {
	s := NewSession("ABC123", "Alice")
	bob, _ := s.AddPlayer("Bob")
	carol, _ := s.AddPlayer("Carol")

	s.StartQuestion("Capital of France?", "Paris", "manual")
	if s.AllSubmitted() {
		t.Fatal("no submissions yet")
	}
	s.SubmitFakeAnswer(bob.ID, "Lyon")
	if s.AllSubmitted() {
		t.Fatal("carol has not submitted")
	}
	s.SubmitFakeAnswer(carol.ID, "Nice")
	if !s.AllSubmitted() {
		t.Fatal("both non-owners submitted")
	}

	s.Phase = phaseVoting
	s.SubmitVote(bob.ID, "Paris")
	if s.AllVoted() {
		t.Fatal("carol has not voted")
	}
	s.SubmitVote(carol.ID, "Lyon")
	if !s.AllVoted() {
		t.Fatal("both non-owners voted")
	}
}

func TestShuffledAnswers_ContainsDecoysAndCorrect(t *testing.T) {
	s := NewSession("ABC123", "Alice")
	bob, _ := s.AddPlayer("Bob")
	carol, _ := s.AddPlayer("Carol")

	s.StartQuestion("Capital of France?", "Paris", "manual")
	s.SubmitFakeAnswer(bob.ID, "Lyon")
	s.SubmitFakeAnswer(carol.ID, "Nice")

	answers := s.ShuffledAnswers()
	if len(answers) != 3 {
		t.Fatalf("want 3 answers, got %d", len(answers))
	}
	seen := map[string]bool{}
	for _, a := range answers {
		seen[a] = true
	}
	for _, want := range []string{"Paris", "Lyon", "Nice"} {
		if !seen[want] {
			t.Fatalf("missing answer %q in %v", want, answers)
		}
	}
}

func TestCalculateScores(t *testing.T) {
	cases := []struct {
		name      string
		votes     map[string]string // voter -> answer
		wantBob   int
		wantCarol int
		wantDave  int
	}{
		{
			// Carol and Dave both fall for Bob's decoy.
			name:      "decoy author collects one point per vote",
			votes:     map[string]string{"bob": "Paris", "carol": "Lyon", "dave": "Lyon"},
			wantBob:   3, // two fooled voters + own correct vote
			wantCarol: 0,
			wantDave:  0,
		},
		{
			name:      "correct voters each score one",
			votes:     map[string]string{"bob": "Paris", "carol": "Paris", "dave": "Paris"},
			wantBob:   1,
			wantCarol: 1,
			wantDave:  1,
		},
		{
			name:      "mixed round",
			votes:     map[string]string{"bob": "Berlin", "carol": "Paris", "dave": "Lyon"},
			wantBob:   1, // dave fell for Lyon
			wantCarol: 2, // bob fell for Berlin, plus a correct vote
			wantDave:  0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession("ABC123", "Alice")
			bob, _ := s.AddPlayer("Bob")
			carol, _ := s.AddPlayer("Carol")
			dave, _ := s.AddPlayer("Dave")
			ids := map[string]string{"bob": bob.ID, "carol": carol.ID, "dave": dave.ID}

			s.StartQuestion("Capital of France?", "Paris", "manual")
			s.SubmitFakeAnswer(bob.ID, "Lyon")
			s.SubmitFakeAnswer(carol.ID, "Berlin")
			s.SubmitFakeAnswer(dave.ID, "Madrid")

			s.Phase = phaseVoting
			for voter, answer := range tc.votes {
				if err := s.SubmitVote(ids[voter], answer); err != nil {
					t.Fatal(err)
				}
			}

			s.CalculateScores()
			if got := s.Scores[bob.ID]; got != tc.wantBob {
				t.Errorf("bob: want %d, got %d", tc.wantBob, got)
			}
			if got := s.Scores[carol.ID]; got != tc.wantCarol {
				t.Errorf("carol: want %d, got %d", tc.wantCarol, got)
			}
			if got := s.Scores[dave.ID]; got != tc.wantDave {
				t.Errorf("dave: want %d, got %d", tc.wantDave, got)
			}
		})
	}
}

func TestCalculateScores_AccumulatesAcrossRounds(t *testing.T) {
	s := NewSession("ABC123", "Alice")
	bob, _ := s.AddPlayer("Bob")

	for round := 0; round < 3; round++ {
		s.StartQuestion("Capital of France?", "Paris", "manual")
		s.SubmitFakeAnswer(bob.ID, "Lyon")
		s.Phase = phaseVoting
		s.SubmitVote(bob.ID, "Paris")
		s.CalculateScores()
		s.ResetForNextRound()
	}
	if got := s.Scores[bob.ID]; got != 3 {
		t.Fatalf("want 3 accumulated points, got %d", got)
	}
}

func TestResults_MapsDecoysToPseudonyms(t *testing.T) {
	s := NewSession("ABC123", "Alice")
	bob, _ := s.AddPlayer("Bob")

	s.StartQuestion("Capital of France?", "Paris", "manual")
	s.SubmitFakeAnswer(bob.ID, "Lyon")
	s.Phase = phaseVoting
	s.SubmitVote(bob.ID, "Paris")
	s.CalculateScores()

	r := s.Results()
	if r.CorrectAnswer != "Paris" {
		t.Fatalf("want Paris, got %q", r.CorrectAnswer)
	}
	if r.FakeAnswers["Bob"] != "Lyon" {
		t.Fatalf("decoy not keyed by pseudonym: %v", r.FakeAnswers)
	}
	if r.VoteCounts["Paris"] != 1 {
		t.Fatalf("vote counts wrong: %v", r.VoteCounts)
	}
}

func TestSnapshot_RedactsByPhase(t *testing.T) {
	s := NewSession("ABC123", "Alice")
	bob, _ := s.AddPlayer("Bob")

	if snap := s.Snapshot(); snap.CurrentQuestion != nil {
		t.Fatal("waiting snapshot must not carry a question")
	}

	s.StartQuestion("Capital of France?", "Paris", "manual")
	snap := s.Snapshot()
	if snap.CurrentQuestion == nil || snap.CurrentQuestion.Text != "Capital of France?" {
		t.Fatalf("submission snapshot missing question: %+v", snap.CurrentQuestion)
	}
	if snap.Answers != nil || snap.Results != nil {
		t.Fatal("submission snapshot must not reveal answers or results")
	}

	s.SubmitFakeAnswer(bob.ID, "Lyon")
	s.Phase = phaseVoting
	snap = s.Snapshot()
	if len(snap.Answers) != 2 {
		t.Fatalf("voting snapshot must list answers, got %v", snap.Answers)
	}
	if snap.Results != nil {
		t.Fatal("voting snapshot must not reveal results")
	}

	s.SubmitVote(bob.ID, "Paris")
	s.CalculateScores()
	s.Phase = phaseResults
	snap = s.Snapshot()
	if snap.Results == nil || snap.Results.CorrectAnswer != "Paris" {
		t.Fatalf("results snapshot missing results: %+v", snap.Results)
	}
}

func TestResetForNextRound_KeepsRosterAndScores(t *testing.T) {
	s := NewSession("ABC123", "Alice")
	bob, _ := s.AddPlayer("Bob")

	s.StartQuestion("Capital of France?", "Paris", "manual")
	s.SubmitFakeAnswer(bob.ID, "Lyon")
	s.Phase = phaseVoting
	s.SubmitVote(bob.ID, "Paris")
	s.CalculateScores()
	s.ResetForNextRound()

	if s.Phase != phaseWaiting || s.Current != nil {
		t.Fatalf("round not cleared: phase=%s current=%v", s.Phase, s.Current)
	}
	if len(s.Players) != 2 || s.Scores[bob.ID] != 1 {
		t.Fatalf("roster or scores lost: players=%d scores=%v", len(s.Players), s.Scores)
	}
	if s.RoundNumber != 1 {
		t.Fatalf("round number must survive reset, got %d", s.RoundNumber)
	}

	s.StartQuestion("Largest mammal?", "Blue whale", "manual")
	if s.RoundNumber != 2 {
		t.Fatalf("want round 2, got %d", s.RoundNumber)
	}
}

func TestRoom_AttachReplacesPriorConnection(t *testing.T) {
	room := NewRoom(NewSession("ABC123", "Alice"))

	first := room.Attach("p1")
	second := room.Attach("p1")

	if _, ok := <-first; ok {
		t.Fatal("prior connection must be closed on replace")
	}

	room.Send("p1", "PLAYER_CONNECTED", map[string]string{"player_id": "p1"})
	select {
	case frame := <-second:
		if len(frame) == 0 {
			t.Fatal("empty frame")
		}
	default:
		t.Fatal("replacement connection did not receive the frame")
	}

	room.Detach("p1", second)
	if _, ok := <-second; ok {
		t.Fatal("detach must close the outbox")
	}
}

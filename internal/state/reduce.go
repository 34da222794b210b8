package state

import "github.com/triviabluff/client-go/pkg/protocol"

// Reduce maps (state, event) to the next state. It is pure: no I/O, no
// blocking, no mutation of the input. Events outside the known set leave
// the state untouched.
func Reduce(s State, ev protocol.Event) State {
	switch e := ev.(type) {
	case protocol.ConnectionEstablished:
		s.Err = ""
		return s

	case protocol.PlayerJoined:
		return applyPlayerJoined(s, e)

	case protocol.PlayerConnected:
		return setPlayerConnected(s, e.PlayerID, true)

	case protocol.PlayerDisconnected:
		return setPlayerConnected(s, e.PlayerID, false)

	case protocol.QuestionSubmitted:
		return startRound(s, e.Question, "", e.RoundNumber)

	case protocol.QuestionEdited:
		return startRound(s, e.Question, e.QuestionSource, e.RoundNumber)

	case protocol.AnswerSubmitted:
		if s.CurrentQuestion == nil {
			return s
		}
		q := cloneQuestion(s.CurrentQuestion)
		q.SubmissionsCount = e.SubmissionsCount
		s.CurrentQuestion = q
		return s

	case protocol.VotingStarted:
		s.Phase = PhaseVoting
		s.Answers = append([]string(nil), e.Answers...)
		return s

	case protocol.VoteSubmitted:
		if s.CurrentQuestion == nil {
			return s
		}
		q := cloneQuestion(s.CurrentQuestion)
		q.VotesCount = e.VotesCount
		s.CurrentQuestion = q
		return s

	case protocol.ResultsReady:
		s.Phase = PhaseResults
		r := e.Results
		s.Results = &r
		// Authoritative totals replace local ones wholesale; no merging.
		s.Scores = cloneScores(e.Results.Scores)
		return s

	case protocol.NextRoundStarted:
		s.Phase = PhaseWaiting
		s.CurrentQuestion = nil
		s.Answers = nil
		s.Results = nil
		s.AutoProgress = nil
		if e.RoundNumber > 0 {
			s.RoundNumber = e.RoundNumber
		}
		return s

	case protocol.GameStateUpdate:
		return applyGameStateUpdate(s, e)

	case protocol.DiceQuestionSelected:
		// Staged draft for the game master; the phase does not change
		// until the question is confirmed or edited.
		s.CurrentQuestion = &Question{
			Text:     e.Question,
			Answer:   e.Answer,
			Source:   e.QuestionSource,
			Editable: e.CanEdit,
		}
		return s

	case protocol.AutoModeProgress:
		s.AutoProgress = &AutoProgress{
			Phase:     e.CurrentPhase,
			Remaining: e.TimeRemaining,
			Total:     e.TotalTime,
		}
		return s

	case protocol.AutoTimerCancelled:
		s.AutoMode = false
		s.AutoProgress = nil
		return s

	default:
		// Forward compatibility: unknown tags no-op.
		return s
	}
}

func applyPlayerJoined(s State, e protocol.PlayerJoined) State {
	players := clonePlayers(s.Players)
	for i, p := range players {
		if p.ID == e.Player.ID {
			// Replayed join (reconnect); refresh the entry instead of
			// growing the roster.
			players[i] = e.Player
			s.Players = players
			return s
		}
	}
	s.Players = append(players, e.Player)
	return s
}

func setPlayerConnected(s State, id string, connected bool) State {
	players := clonePlayers(s.Players)
	for i := range players {
		if players[i].ID == id {
			players[i].Connected = connected
		}
	}
	s.Players = players
	return s
}

func startRound(s State, question, source string, round int) State {
	s.Phase = PhaseSubmission
	s.CurrentQuestion = &Question{Text: question, Source: source}
	if round > 0 {
		s.RoundNumber = round
	}
	s.Answers = nil
	s.Results = nil
	return s
}

// applyGameStateUpdate patches only the fields the server filled in,
// mirroring the coarse frames automatic mode broadcasts.
func applyGameStateUpdate(s State, e protocol.GameStateUpdate) State {
	s.AutoMode = e.AutomaticMode
	if e.RoundNumber > 0 {
		s.RoundNumber = e.RoundNumber
	}
	switch Phase(e.GameState) {
	case PhaseSubmission:
		if e.Question != "" {
			s.CurrentQuestion = &Question{Text: e.Question, Source: e.QuestionSource}
			s.Answers = nil
			s.Results = nil
		}
		s.Phase = PhaseSubmission
	case PhaseVoting:
		s.Phase = PhaseVoting
		if e.Answers != nil {
			s.Answers = append([]string(nil), e.Answers...)
		}
	case PhaseResults:
		s.Phase = PhaseResults
		if e.Results != nil {
			r := *e.Results
			s.Results = &r
			s.Scores = cloneScores(e.Results.Scores)
		}
	case PhaseWaiting:
		s.Phase = PhaseWaiting
	}
	return s
}

package state

import "github.com/triviabluff/client-go/pkg/protocol"

// ApplySnapshot overlays a server session snapshot onto the state. Used by
// the dispatcher when joining (the join response carries the full session
// view) and after fetching the state endpoint.
func ApplySnapshot(s State, snap protocol.SessionState) State {
	if snap.SessionID != "" {
		s.SessionID = snap.SessionID
	}
	if snap.GameState != "" {
		s.Phase = Phase(snap.GameState)
	}
	if snap.Players != nil {
		s.Players = clonePlayers(snap.Players)
	}
	if snap.Scores != nil {
		s.Scores = cloneScores(snap.Scores)
	}
	if snap.RoundNumber > 0 {
		s.RoundNumber = snap.RoundNumber
	}
	if snap.CurrentQuestion != nil {
		s.CurrentQuestion = &Question{
			Text:             snap.CurrentQuestion.Text,
			SubmissionsCount: snap.CurrentQuestion.SubmissionsCount,
			VotesCount:       snap.CurrentQuestion.VotesCount,
		}
	}
	if snap.Answers != nil {
		s.Answers = append([]string(nil), snap.Answers...)
	}
	if snap.Results != nil {
		r := *snap.Results
		s.Results = &r
	}
	return s
}

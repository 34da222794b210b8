package fakeserver

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/triviabluff/client-go/pkg/protocol"
)

// Server wires the hub, question store, and automatic game master behind
// the same REST surface the real backend exposes.
type Server struct {
	hub       *Hub
	questions *QuestionStore
	auto      *AutoGM
	log       *zap.Logger
}

func New(ctx context.Context, log *zap.Logger) *Server {
	questions := NewQuestionStore()
	return &Server{
		hub:       NewHub(ctx),
		questions: questions,
		auto:      NewAutoGM(questions, log),
		log:       log,
	}
}

// Questions exposes the question store so tests can seed sets directly.
func (srv *Server) Questions() *QuestionStore { return srv.questions }

func (srv *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/sessions", srv.handleCreateSession)
	r.Post("/sessions/{sessionID}/join", srv.handleJoinSession)
	r.Get("/sessions/{sessionID}/state", srv.handleSessionState)
	r.Post("/sessions/{sessionID}/questions", srv.handleSubmitQuestion)
	r.Post("/sessions/{sessionID}/answers", srv.handleSubmitAnswer)
	r.Post("/sessions/{sessionID}/votes", srv.handleSubmitVote)
	r.Post("/sessions/{sessionID}/end-submissions", srv.handleEndSubmissions)
	r.Post("/sessions/{sessionID}/end-voting", srv.handleEndVoting)
	r.Post("/sessions/{sessionID}/next-round", srv.handleNextRound)
	r.Post("/sessions/{sessionID}/auto-mode", srv.handleEnableAutoMode)
	r.Post("/sessions/{sessionID}/dice-question", srv.handleDiceQuestion)
	r.Put("/sessions/{sessionID}/edit-question", srv.handleEditQuestion)
	r.Post("/sessions/{sessionID}/cancel-auto-timer", srv.handleCancelAutoTimer)

	r.Post("/question-sets/upload", srv.handleUploadQuestionSet)
	r.Get("/question-sets", srv.handleListQuestionSets)
	r.Get("/question-sets/{setID}", srv.handleGetQuestionSet)
	r.Delete("/question-sets/{setID}", srv.handleDeleteQuestionSet)

	r.Get("/ws/{sessionID}/{playerID}", srv.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

func generateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[n.Int64()]
	}
	return string(code), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, protocol.ErrorResponse{Detail: detail})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// room resolves the session or writes a 404.
func (srv *Server) room(w http.ResponseWriter, r *http.Request) *Room {
	room := srv.hub.Get(chi.URLParam(r, "sessionID"))
	if room == nil {
		writeDetail(w, http.StatusNotFound, "Session not found")
	}
	return room
}

// requireGameMaster checks the player_id query param against the session
// owner.
func requireGameMaster(w http.ResponseWriter, r *http.Request, room *Room, action string) (string, bool) {
	playerID := r.URL.Query().Get("player_id")
	var isGM bool
	_ = room.Do(func(s *Session) error {
		isGM = s.IsGameMaster(playerID)
		return nil
	})
	if !isGM {
		writeDetail(w, http.StatusForbidden, "Only game master can "+action)
		return "", false
	}
	return playerID, true
}

func (srv *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.GameMasterPseudonym) == "" {
		writeDetail(w, http.StatusBadRequest, "game_master_pseudonym must not be empty")
		return
	}

	var code string
	for {
		c, err := generateCode()
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "failed to generate session code")
			return
		}
		if srv.hub.Get(c) == nil {
			code = c
			break
		}
		srv.log.Debug("session code collision, regenerating")
	}

	session := NewSession(code, req.GameMasterPseudonym)
	srv.hub.Ensure(code, NewRoom(session))

	writeJSON(w, http.StatusOK, protocol.CreateSessionResponse{
		SessionID: session.ID,
		PlayerID:  session.GameMasterID,
	})
}

func (srv *Server) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	room := srv.room(w, r)
	if room == nil {
		return
	}
	var req protocol.JoinSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Pseudonym) == "" {
		writeDetail(w, http.StatusBadRequest, "pseudonym must not be empty")
		return
	}

	var (
		player *protocol.Player
		snap   protocol.SessionState
		total  int
	)
	err := room.Do(func(s *Session) error {
		p, err := s.AddPlayer(req.Pseudonym)
		if err != nil {
			return err
		}
		player = p
		snap = s.Snapshot()
		total = len(s.Players)
		return nil
	})
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	room.Broadcast(protocol.EvtPlayerJoined, protocol.PlayerJoined{
		Player:       *player,
		TotalPlayers: total,
	})

	writeJSON(w, http.StatusOK, protocol.JoinSessionResponse{
		PlayerID:     player.ID,
		SessionState: snap,
	})
}

func (srv *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	room := srv.room(w, r)
	if room == nil {
		return
	}
	var snap protocol.SessionState
	_ = room.Do(func(s *Session) error {
		snap = s.Snapshot()
		return nil
	})
	writeJSON(w, http.StatusOK, snap)
}

func (srv *Server) handleSubmitQuestion(w http.ResponseWriter, r *http.Request) {
	room := srv.room(w, r)
	if room == nil {
		return
	}
	if _, ok := requireGameMaster(w, r, room, "submit questions"); !ok {
		return
	}
	var req protocol.SubmitQuestionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var ev protocol.QuestionSubmitted
	_ = room.Do(func(s *Session) error {
		s.StartQuestion(req.Question, req.Answer, "manual")
		ev = protocol.QuestionSubmitted{
			Question:    req.Question,
			GameState:   s.Phase,
			RoundNumber: s.RoundNumber,
		}
		return nil
	})
	room.Broadcast(protocol.EvtQuestionSubmitted, ev)
	writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "Question submitted successfully"})
}

func (srv *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	room := srv.room(w, r)
	if room == nil {
		return
	}
	playerID := r.URL.Query().Get("player_id")
	var req protocol.SubmitAnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		update protocol.AnswerSubmitted
		voting *protocol.VotingStarted
	)
	err := room.Do(func(s *Session) error {
		if err := s.SubmitFakeAnswer(playerID, req.FakeAnswer); err != nil {
			return err
		}
		update = protocol.AnswerSubmitted{
			SubmissionsCount: len(s.Current.FakeAnswers),
			TotalExpected:    s.nonOwnerCount(),
			AllSubmitted:     s.AllSubmitted(),
		}
		if s.AllSubmitted() {
			s.Phase = phaseVoting
			voting = &protocol.VotingStarted{
				GameState: s.Phase,
				Answers:   s.ShuffledAnswers(),
			}
		}
		return nil
	})
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	room.Broadcast(protocol.EvtAnswerSubmitted, update)
	if voting != nil {
		room.Broadcast(protocol.EvtVotingStarted, *voting)
	}
	writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "Answer submitted successfully"})
}

func (srv *Server) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	room := srv.room(w, r)
	if room == nil {
		return
	}
	playerID := r.URL.Query().Get("player_id")
	var req protocol.SubmitVoteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		update  protocol.VoteSubmitted
		results *protocol.ResultsReady
	)
	err := room.Do(func(s *Session) error {
		if err := s.SubmitVote(playerID, req.VotedAnswer); err != nil {
			return err
		}
		update = protocol.VoteSubmitted{
			VotesCount:   len(s.Current.Votes),
			TotalPlayers: s.nonOwnerCount(),
			AllVoted:     s.AllVoted(),
		}
		if s.AllVoted() {
			s.Phase = phaseResults
			roundScores := s.CalculateScores()
			results = &protocol.ResultsReady{
				GameState:   s.Phase,
				Results:     s.Results(),
				RoundScores: roundScores,
			}
		}
		return nil
	})
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	room.Broadcast(protocol.EvtVoteSubmitted, update)
	if results != nil {
		room.Broadcast(protocol.EvtResultsReady, *results)
	}
	writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "Vote submitted successfully"})
}

func (srv *Server) handleEndSubmissions(w http.ResponseWriter, r *http.Request) {
	room := srv.room(w, r)
	if room == nil {
		return
	}
	if _, ok := requireGameMaster(w, r, room, "end submissions"); !ok {
		return
	}

	var ev protocol.VotingStarted
	err := room.Do(func(s *Session) error {
		if s.Phase != phaseSubmission {
			return errNotSubmissionPhase
		}
		s.Phase = phaseVoting
		ev = protocol.VotingStarted{
			GameState: s.Phase,
			Answers:   s.ShuffledAnswers(),
			Message:   "Game master ended submission phase early",
		}
		return nil
	})
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	room.Broadcast(protocol.EvtSubmissionsEnded, ev)
	writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "Submissions ended successfully"})
}

func (srv *Server) handleEndVoting(w http.ResponseWriter, r *http.Request) {
	room := srv.room(w, r)
	if room == nil {
		return
	}
	if _, ok := requireGameMaster(w, r, room, "end voting"); !ok {
		return
	}

	var ev protocol.ResultsReady
	err := room.Do(func(s *Session) error {
		if s.Phase != phaseVoting {
			return errNotVotingPhase
		}
		s.Phase = phaseResults
		roundScores := s.CalculateScores()
		ev = protocol.ResultsReady{
			GameState:   s.Phase,
			Results:     s.Results(),
			RoundScores: roundScores,
			Message:     "Game master ended voting early",
		}
		return nil
	})
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	room.Broadcast(protocol.EvtVotingEnded, ev)
	writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "Voting ended successfully"})
}

func (srv *Server) handleNextRound(w http.ResponseWriter, r *http.Request) {
	room := srv.room(w, r)
	if room == nil {
		return
	}
	if _, ok := requireGameMaster(w, r, room, "start next round"); !ok {
		return
	}

	var ev protocol.NextRoundStarted
	_ = room.Do(func(s *Session) error {
		s.ResetForNextRound()
		ev = protocol.NextRoundStarted{
			GameState:   s.Phase,
			RoundNumber: s.RoundNumber,
		}
		return nil
	})
	room.Broadcast(protocol.EvtNextRoundStarted, ev)
	writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "Next round started"})
}

func (srv *Server) handleEnableAutoMode(w http.ResponseWriter, r *http.Request) {
	room := srv.room(w, r)
	if room == nil {
		return
	}
	if _, ok := requireGameMaster(w, r, room, "enable auto mode"); !ok {
		return
	}
	var req protocol.EnableAutoModeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, ok := srv.questions.Get(req.QuestionSetID); !ok {
		writeDetail(w, http.StatusNotFound, "Question set not found")
		return
	}
	if err := srv.auto.Start(room, req.QuestionSetID, req.Timers); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "Automatic mode enabled successfully"})
}

func (srv *Server) handleDiceQuestion(w http.ResponseWriter, r *http.Request) {
	room := srv.room(w, r)
	if room == nil {
		return
	}
	if _, ok := requireGameMaster(w, r, room, "use dice"); !ok {
		return
	}

	sets := srv.questions.List()
	if len(sets) == 0 {
		writeDetail(w, http.StatusBadRequest, "No question sets available")
		return
	}

	var resp protocol.DiceQuestionResponse
	err := room.Do(func(s *Session) error {
		q, idx, err := srv.questions.Random(sets[0].ID, s.UsedQuestions)
		if err != nil {
			return err
		}
		resp = protocol.DiceQuestionResponse{
			Question:      q.Question,
			Answer:        q.Answer,
			QuestionIndex: idx,
			CanEdit:       true,
		}
		return nil
	})
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	room.Broadcast(protocol.EvtDiceQuestionSelected, protocol.DiceQuestionSelected{
		Question:       resp.Question,
		Answer:         resp.Answer,
		CanEdit:        true,
		QuestionIndex:  resp.QuestionIndex,
		QuestionSource: "dice",
	})
	writeJSON(w, http.StatusOK, resp)
}

func (srv *Server) handleEditQuestion(w http.ResponseWriter, r *http.Request) {
	room := srv.room(w, r)
	if room == nil {
		return
	}
	if _, ok := requireGameMaster(w, r, room, "edit questions"); !ok {
		return
	}
	var req protocol.EditQuestionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var ev protocol.QuestionEdited
	_ = room.Do(func(s *Session) error {
		s.StartQuestion(req.Question, req.Answer, "dice")
		ev = protocol.QuestionEdited{
			Question:       req.Question,
			GameState:      s.Phase,
			RoundNumber:    s.RoundNumber,
			QuestionSource: "dice",
		}
		return nil
	})
	room.Broadcast(protocol.EvtQuestionEdited, ev)
	writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "Question edited and submitted successfully"})
}

func (srv *Server) handleCancelAutoTimer(w http.ResponseWriter, r *http.Request) {
	room := srv.room(w, r)
	if room == nil {
		return
	}
	if _, ok := requireGameMaster(w, r, room, "cancel timers"); !ok {
		return
	}

	var sessionID string
	_ = room.Do(func(s *Session) error {
		sessionID = s.ID
		s.AutoMode = false
		return nil
	})
	srv.auto.Cancel(sessionID)

	room.Broadcast(protocol.EvtAutoTimerCancelled, protocol.AutoTimerCancelled{
		Message: "Automatic timer cancelled - manual control resumed",
	})
	writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "Automatic timer cancelled"})
}

func (srv *Server) handleUploadQuestionSet(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, ".csv") {
		writeDetail(w, http.StatusBadRequest, "File must be a CSV")
		return
	}

	set, err := srv.questions.ParseCSV(file, header.Filename)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, protocol.UploadQuestionSetResponse{
		Message:     "Question set uploaded successfully",
		QuestionSet: set.Summary(),
	})
}

func (srv *Server) handleListQuestionSets(w http.ResponseWriter, r *http.Request) {
	sets := srv.questions.List()
	resp := protocol.ListQuestionSetsResponse{
		QuestionSets: make([]protocol.QuestionSetSummary, 0, len(sets)),
	}
	for _, set := range sets {
		resp.QuestionSets = append(resp.QuestionSets, set.Summary())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (srv *Server) handleGetQuestionSet(w http.ResponseWriter, r *http.Request) {
	set, ok := srv.questions.Get(chi.URLParam(r, "setID"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Question set not found")
		return
	}
	preview := set.Questions
	if len(preview) > 10 {
		preview = preview[:10]
	}
	writeJSON(w, http.StatusOK, protocol.QuestionSetDetail{
		SetID:          set.ID,
		Name:           set.Name,
		Category:       set.Category,
		Questions:      preview,
		TotalQuestions: len(set.Questions),
		CreatedAt:      set.CreatedAt,
	})
}

func (srv *Server) handleDeleteQuestionSet(w http.ResponseWriter, r *http.Request) {
	if !srv.questions.Delete(chi.URLParam(r, "setID")) {
		writeDetail(w, http.StatusNotFound, "Question set not found")
		return
	}
	writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "Question set deleted successfully"})
}

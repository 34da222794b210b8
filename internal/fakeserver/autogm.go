package fakeserver

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/triviabluff/client-go/pkg/protocol"
)

// AutoGM drives sessions through phases on timers instead of waiting for
// manual game-master actions. One timer goroutine runs per session; a new
// phase cancels the previous timer.
type AutoGM struct {
	questions *QuestionStore
	log       *zap.Logger

	mu     sync.Mutex
	timers map[string]context.CancelFunc
}

func NewAutoGM(questions *QuestionStore, log *zap.Logger) *AutoGM {
	return &AutoGM{
		questions: questions,
		log:       log,
		timers:    make(map[string]context.CancelFunc),
	}
}

// Start enables automatic mode on a session and poses the first question.
func (a *AutoGM) Start(room *Room, setID string, timers map[string]int) error {
	err := room.Do(func(s *Session) error {
		s.AutoMode = true
		s.QuestionSetID = setID
		for k, v := range timers {
			s.Timers[k] = v
		}
		return nil
	})
	if err != nil {
		return err
	}
	return a.nextQuestion(room)
}

// Cancel stops the session's active timer so the game master can resume
// manual control.
func (a *AutoGM) Cancel(sessionID string) {
	a.mu.Lock()
	if cancel, ok := a.timers[sessionID]; ok {
		cancel()
		delete(a.timers, sessionID)
	}
	a.mu.Unlock()
}

func (a *AutoGM) nextQuestion(room *Room) error {
	var sessionID string
	err := room.Do(func(s *Session) error {
		if !s.AutoMode {
			return nil
		}
		q, idx, err := a.questions.Random(s.QuestionSetID, s.UsedQuestions)
		if err != nil {
			// No usable question set left; drop back to manual control.
			s.AutoMode = false
			return err
		}
		s.UsedQuestions[idx] = true
		s.StartQuestion(q.Question, q.Answer, "csv")
		sessionID = s.ID

		room.Broadcast(protocol.EvtGameStateUpdate, protocol.GameStateUpdate{
			GameState:      s.Phase,
			Question:       s.Current.Text,
			RoundNumber:    s.RoundNumber,
			AutomaticMode:  true,
			QuestionSource: "csv",
		})
		return nil
	})
	if err != nil || sessionID == "" {
		return err
	}
	a.startTimer(room, sessionID, "submission")
	return nil
}

func (a *AutoGM) startTimer(room *Room, sessionID, phase string) {
	var duration int
	_ = room.Do(func(s *Session) error {
		key := phase + "_timeout"
		if phase == "results" {
			key = "results_display"
		}
		duration = s.Timers[key]
		if duration <= 0 {
			duration = 30
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	if prev, ok := a.timers[sessionID]; ok {
		prev()
	}
	a.timers[sessionID] = cancel
	a.mu.Unlock()

	go a.countdown(ctx, room, sessionID, phase, duration)
}

func (a *AutoGM) countdown(ctx context.Context, room *Room, sessionID, phase string, duration int) {
	for remaining := duration; remaining > 0; remaining-- {
		room.Broadcast(protocol.EvtAutoModeProgress, protocol.AutoModeProgress{
			CurrentPhase:  strings.ToUpper(phase) + "_PHASE",
			TimeRemaining: remaining,
			TotalTime:     duration,
		})
		select {
		case <-ctx.Done():
			// Cancel already removed the registration.
			return
		case <-time.After(time.Second):
		}
	}
	// Clear before handing off so the next phase's registration survives.
	a.clearTimer(sessionID)
	a.handleTimeout(room, sessionID, phase)
}

func (a *AutoGM) clearTimer(sessionID string) {
	a.mu.Lock()
	delete(a.timers, sessionID)
	a.mu.Unlock()
}

func (a *AutoGM) handleTimeout(room *Room, sessionID, phase string) {
	switch phase {
	case "submission":
		_ = room.Do(func(s *Session) error {
			if !s.AutoMode {
				return nil
			}
			s.Phase = phaseVoting
			room.Broadcast(protocol.EvtGameStateUpdate, protocol.GameStateUpdate{
				GameState:     s.Phase,
				Answers:       s.ShuffledAnswers(),
				AutomaticMode: true,
			})
			return nil
		})
		a.startTimer(room, sessionID, "voting")

	case "voting":
		_ = room.Do(func(s *Session) error {
			if !s.AutoMode {
				return nil
			}
			s.Phase = phaseResults
			roundScores := s.CalculateScores()
			results := s.Results()
			room.Broadcast(protocol.EvtGameStateUpdate, protocol.GameStateUpdate{
				GameState:     s.Phase,
				Results:       &results,
				RoundScores:   roundScores,
				AutomaticMode: true,
			})
			return nil
		})
		a.startTimer(room, sessionID, "results")

	case "results":
		_ = room.Do(func(s *Session) error {
			if s.AutoMode {
				s.ResetForNextRound()
			}
			return nil
		})
		if err := a.nextQuestion(room); err != nil {
			a.log.Warn("automatic progression stopped", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/triviabluff/client-go/internal/state"
	"github.com/triviabluff/client-go/internal/store"
	"github.com/triviabluff/client-go/internal/transport"
	"github.com/triviabluff/client-go/pkg/protocol"
)

// Operation names for the per-operation in-flight guards.
const (
	opCreateSession  = "create_session"
	opJoinSession    = "join_session"
	opSubmitQuestion = "submit_question"
	opSubmitAnswer   = "submit_answer"
	opSubmitVote     = "submit_vote"
	opEndSubmissions = "end_submissions"
	opEndVoting      = "end_voting"
	opNextRound      = "next_round"
	opAutoMode       = "auto_mode"
	opCancelTimer    = "cancel_timer"
	opDiceQuestion   = "dice_question"
	opEditQuestion   = "edit_question"
	opUploadSet      = "upload_set"
)

// Client is the action dispatcher: one method per player-initiated
// intent. Every method validates its inputs, issues the request, and on
// failure records the server's message into the store's shared error
// state as well as returning it. Successful create/join also start the
// push transport.
type Client struct {
	baseURL   string
	http      *http.Client
	store     *store.Store
	transport *transport.Transport
	log       *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL string, st *store.Store, tr *transport.Transport, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		http:      &http.Client{Timeout: 15 * time.Second},
		store:     st,
		transport: tr,
		log:       log,
		inFlight:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store exposes the session store for subscribers.
func (c *Client) Store() *store.Store { return c.store }

// begin claims the in-flight slot for an operation. A second call before
// release (e.g. a double-click) fails fast without a network round-trip.
func (c *Client) begin(op string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[op] {
		return nil, ErrInFlight
	}
	c.inFlight[op] = true
	return func() {
		c.mu.Lock()
		delete(c.inFlight, op)
		c.mu.Unlock()
	}, nil
}

// fail records a request error into shared error state and passes it back
// to the caller. Validation errors take the same path so the UI has one
// place to look.
func (c *Client) fail(op string, err error) error {
	c.log.Warn("operation failed", zap.String("op", op), zap.Error(err))
	c.store.SetError(err.Error())
	return err
}

// do issues one JSON request. A non-2xx response decodes the error body's
// detail field into an *APIError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body protocol.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Detail = body.Detail
	}
	return apiErr
}

// identity reads the current session/player ids from the store.
func (c *Client) identity() (sessionID, playerID string, err error) {
	st := c.store.State()
	if st.SessionID == "" || st.PlayerID == "" {
		return "", "", ErrNoSession
	}
	return st.SessionID, st.PlayerID, nil
}

// sessionPath builds /sessions/{id}{suffix}?player_id={pid}.
func sessionPath(sessionID, suffix, playerID string) string {
	p := "/sessions/" + url.PathEscape(sessionID) + suffix
	if playerID != "" {
		p += "?player_id=" + url.QueryEscape(playerID)
	}
	return p
}

// CreateSession creates a new session with the caller as game master,
// records the identity, and connects the push channel.
func (c *Client) CreateSession(ctx context.Context, pseudonym string) (protocol.CreateSessionResponse, error) {
	var resp protocol.CreateSessionResponse
	release, err := c.begin(opCreateSession)
	if err != nil {
		return resp, err
	}
	defer release()

	if strings.TrimSpace(pseudonym) == "" {
		return resp, c.fail(opCreateSession, ErrEmptyPseudonym)
	}

	c.setLoading(true)
	defer c.setLoading(false)

	err = c.do(ctx, http.MethodPost, "/sessions",
		protocol.CreateSessionRequest{GameMasterPseudonym: pseudonym}, &resp)
	if err != nil {
		return resp, c.fail(opCreateSession, err)
	}

	c.store.Update(func(st state.State) state.State {
		st.SessionID = resp.SessionID
		st.PlayerID = resp.PlayerID
		st.PlayerName = pseudonym
		st.IsGameMaster = true
		st.Err = ""
		return st
	})

	if err := c.transport.Connect(ctx, resp.SessionID, resp.PlayerID); err != nil {
		return resp, c.fail(opCreateSession, err)
	}
	return resp, nil
}

// JoinSession joins an existing session by code, overlays the returned
// session snapshot, and connects the push channel.
func (c *Client) JoinSession(ctx context.Context, sessionID, pseudonym string) (protocol.JoinSessionResponse, error) {
	var resp protocol.JoinSessionResponse
	release, err := c.begin(opJoinSession)
	if err != nil {
		return resp, err
	}
	defer release()

	if strings.TrimSpace(sessionID) == "" {
		return resp, c.fail(opJoinSession, ErrEmptySessionID)
	}
	if strings.TrimSpace(pseudonym) == "" {
		return resp, c.fail(opJoinSession, ErrEmptyPseudonym)
	}

	c.setLoading(true)
	defer c.setLoading(false)

	err = c.do(ctx, http.MethodPost, sessionPath(sessionID, "/join", ""),
		protocol.JoinSessionRequest{Pseudonym: pseudonym}, &resp)
	if err != nil {
		return resp, c.fail(opJoinSession, err)
	}

	c.store.Update(func(st state.State) state.State {
		st.SessionID = sessionID
		st.PlayerID = resp.PlayerID
		st.PlayerName = pseudonym
		st.IsGameMaster = false
		st.Err = ""
		return state.ApplySnapshot(st, resp.SessionState)
	})

	if err := c.transport.Connect(ctx, sessionID, resp.PlayerID); err != nil {
		return resp, c.fail(opJoinSession, err)
	}
	return resp, nil
}

// SubmitQuestion posts the round's question and correct answer (game
// master only; the server enforces the role).
func (c *Client) SubmitQuestion(ctx context.Context, question, answer string) error {
	release, err := c.begin(opSubmitQuestion)
	if err != nil {
		return err
	}
	defer release()

	if strings.TrimSpace(question) == "" {
		return c.fail(opSubmitQuestion, ErrEmptyQuestion)
	}
	if strings.TrimSpace(answer) == "" {
		return c.fail(opSubmitQuestion, ErrEmptyAnswer)
	}
	sid, pid, err := c.identity()
	if err != nil {
		return c.fail(opSubmitQuestion, err)
	}

	err = c.do(ctx, http.MethodPost, sessionPath(sid, "/questions", pid),
		protocol.SubmitQuestionRequest{Question: question, Answer: answer}, nil)
	if err != nil {
		return c.fail(opSubmitQuestion, err)
	}
	return nil
}

// SubmitAnswer posts this player's decoy answer for the current round.
func (c *Client) SubmitAnswer(ctx context.Context, fakeAnswer string) error {
	release, err := c.begin(opSubmitAnswer)
	if err != nil {
		return err
	}
	defer release()

	if strings.TrimSpace(fakeAnswer) == "" {
		return c.fail(opSubmitAnswer, ErrEmptyAnswer)
	}
	sid, pid, err := c.identity()
	if err != nil {
		return c.fail(opSubmitAnswer, err)
	}

	err = c.do(ctx, http.MethodPost, sessionPath(sid, "/answers", pid),
		protocol.SubmitAnswerRequest{FakeAnswer: fakeAnswer}, nil)
	if err != nil {
		return c.fail(opSubmitAnswer, err)
	}

	c.store.Update(func(st state.State) state.State {
		st.SubmittedRound = st.RoundNumber
		return st
	})
	return nil
}

// SubmitVote posts this player's vote for one of the revealed answers.
func (c *Client) SubmitVote(ctx context.Context, votedAnswer string) error {
	release, err := c.begin(opSubmitVote)
	if err != nil {
		return err
	}
	defer release()

	if strings.TrimSpace(votedAnswer) == "" {
		return c.fail(opSubmitVote, ErrEmptyVote)
	}
	sid, pid, err := c.identity()
	if err != nil {
		return c.fail(opSubmitVote, err)
	}

	err = c.do(ctx, http.MethodPost, sessionPath(sid, "/votes", pid),
		protocol.SubmitVoteRequest{VotedAnswer: votedAnswer}, nil)
	if err != nil {
		return c.fail(opSubmitVote, err)
	}

	c.store.Update(func(st state.State) state.State {
		st.VotedRound = st.RoundNumber
		return st
	})
	return nil
}

// EndSubmissions cuts the submission phase short (game master only).
func (c *Client) EndSubmissions(ctx context.Context) error {
	return c.simpleOp(ctx, opEndSubmissions, "/end-submissions")
}

// EndVoting cuts the voting phase short (game master only).
func (c *Client) EndVoting(ctx context.Context) error {
	return c.simpleOp(ctx, opEndVoting, "/end-voting")
}

// StartNextRound resets the session for the next round (game master only).
func (c *Client) StartNextRound(ctx context.Context) error {
	return c.simpleOp(ctx, opNextRound, "/next-round")
}

// CancelAutoTimer cancels the automatic-mode phase timer so the game
// master can take over manually. This is the only cancellable operation.
func (c *Client) CancelAutoTimer(ctx context.Context) error {
	return c.simpleOp(ctx, opCancelTimer, "/cancel-auto-timer")
}

func (c *Client) simpleOp(ctx context.Context, op, suffix string) error {
	release, err := c.begin(op)
	if err != nil {
		return err
	}
	defer release()

	sid, pid, err := c.identity()
	if err != nil {
		return c.fail(op, err)
	}
	if err := c.do(ctx, http.MethodPost, sessionPath(sid, suffix, pid), nil, nil); err != nil {
		return c.fail(op, err)
	}
	return nil
}

// EnableAutoMode turns on server-driven progression using a question set
// and optional per-phase timer durations in seconds.
func (c *Client) EnableAutoMode(ctx context.Context, questionSetID string, timers map[string]int) error {
	release, err := c.begin(opAutoMode)
	if err != nil {
		return err
	}
	defer release()

	if strings.TrimSpace(questionSetID) == "" {
		return c.fail(opAutoMode, fmt.Errorf("question set id must not be empty"))
	}
	sid, pid, err := c.identity()
	if err != nil {
		return c.fail(opAutoMode, err)
	}

	err = c.do(ctx, http.MethodPost, sessionPath(sid, "/auto-mode", pid),
		protocol.EnableAutoModeRequest{QuestionSetID: questionSetID, Timers: timers}, nil)
	if err != nil {
		return c.fail(opAutoMode, err)
	}
	return nil
}

// RollDiceQuestion asks the server for a random, editable question draft.
func (c *Client) RollDiceQuestion(ctx context.Context) (protocol.DiceQuestionResponse, error) {
	var resp protocol.DiceQuestionResponse
	release, err := c.begin(opDiceQuestion)
	if err != nil {
		return resp, err
	}
	defer release()

	sid, pid, err := c.identity()
	if err != nil {
		return resp, c.fail(opDiceQuestion, err)
	}
	if err := c.do(ctx, http.MethodPost, sessionPath(sid, "/dice-question", pid), nil, &resp); err != nil {
		return resp, c.fail(opDiceQuestion, err)
	}
	return resp, nil
}

// EditQuestion replaces the staged dice question and starts the round
// with the edited text.
func (c *Client) EditQuestion(ctx context.Context, question, answer string) error {
	release, err := c.begin(opEditQuestion)
	if err != nil {
		return err
	}
	defer release()

	if strings.TrimSpace(question) == "" {
		return c.fail(opEditQuestion, ErrEmptyQuestion)
	}
	if strings.TrimSpace(answer) == "" {
		return c.fail(opEditQuestion, ErrEmptyAnswer)
	}
	sid, pid, err := c.identity()
	if err != nil {
		return c.fail(opEditQuestion, err)
	}

	err = c.do(ctx, http.MethodPut, sessionPath(sid, "/edit-question", pid),
		protocol.EditQuestionRequest{Question: question, Answer: answer}, nil)
	if err != nil {
		return c.fail(opEditQuestion, err)
	}
	return nil
}

// FetchSessionState pulls the current authoritative snapshot and overlays
// it onto the store, e.g. to resync after a long disconnect.
func (c *Client) FetchSessionState(ctx context.Context) (protocol.SessionState, error) {
	var snap protocol.SessionState
	sid, _, err := c.identity()
	if err != nil {
		return snap, err
	}
	if err := c.do(ctx, http.MethodGet, sessionPath(sid, "/state", ""), nil, &snap); err != nil {
		return snap, err
	}
	c.store.Update(func(st state.State) state.State {
		return state.ApplySnapshot(st, snap)
	})
	return snap, nil
}

// ListQuestionSets returns the server's uploaded question sets.
func (c *Client) ListQuestionSets(ctx context.Context) ([]protocol.QuestionSetSummary, error) {
	var resp protocol.ListQuestionSetsResponse
	if err := c.do(ctx, http.MethodGet, "/question-sets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.QuestionSets, nil
}

// GetQuestionSet returns one question set with a preview of its rows.
func (c *Client) GetQuestionSet(ctx context.Context, setID string) (protocol.QuestionSetDetail, error) {
	var resp protocol.QuestionSetDetail
	err := c.do(ctx, http.MethodGet, "/question-sets/"+url.PathEscape(setID), nil, &resp)
	return resp, err
}

// DeleteQuestionSet removes an uploaded question set.
func (c *Client) DeleteQuestionSet(ctx context.Context, setID string) error {
	return c.do(ctx, http.MethodDelete, "/question-sets/"+url.PathEscape(setID), nil, nil)
}

// UploadQuestionSet uploads a CSV of questions (columns: question, answer,
// optional category, difficulty) as a multipart form.
func (c *Client) UploadQuestionSet(ctx context.Context, filename string, csv io.Reader) (protocol.UploadQuestionSetResponse, error) {
	var resp protocol.UploadQuestionSetResponse
	release, err := c.begin(opUploadSet)
	if err != nil {
		return resp, err
	}
	defer release()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return resp, err
	}
	if _, err := io.Copy(part, csv); err != nil {
		return resp, err
	}
	if err := mw.Close(); err != nil {
		return resp, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/question-sets/upload", &buf)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	httpResp, err := c.http.Do(req)
	if err != nil {
		return resp, c.fail(opUploadSet, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return resp, c.fail(opUploadSet, decodeAPIError(httpResp))
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return resp, c.fail(opUploadSet, fmt.Errorf("decode response: %w", err))
	}
	return resp, nil
}

// ClearError clears the shared error display.
func (c *Client) ClearError() {
	c.store.SetError("")
}

// Leave tears down the session: transport closed, store back to its
// initial empty state.
func (c *Client) Leave() {
	c.transport.Close()
	c.store.Clear()
}

// Close releases everything the client owns.
func (c *Client) Close() {
	c.transport.Close()
	c.store.Close()
	c.http.CloseIdleConnections()
}

func (c *Client) setLoading(loading bool) {
	c.store.Update(func(st state.State) state.State {
		st.Loading = loading
		return st
	})
}

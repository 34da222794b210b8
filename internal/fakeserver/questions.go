package fakeserver

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/triviabluff/client-go/pkg/protocol"
)

const maxQuestionsPerSet = 1000

var errSetNotFound = errors.New("question set not found")

// QuestionSet is one uploaded CSV's worth of questions.
type QuestionSet struct {
	ID        string
	Name      string
	Category  string
	Questions []protocol.QuestionRow
	CreatedAt time.Time
}

func (qs *QuestionSet) Summary() protocol.QuestionSetSummary {
	return protocol.QuestionSetSummary{
		SetID:         qs.ID,
		Name:          qs.Name,
		Category:      qs.Category,
		QuestionCount: len(qs.Questions),
		CreatedAt:     qs.CreatedAt,
	}
}

// QuestionStore holds uploaded question sets and serves random draws.
type QuestionStore struct {
	mu   sync.Mutex
	sets map[string]*QuestionSet
}

func NewQuestionStore() *QuestionStore {
	return &QuestionStore{sets: make(map[string]*QuestionSet)}
}

// ParseCSV reads a question CSV (headers: question, answer, optional
// category and difficulty) into a new set. Row problems are collected so
// the uploader sees every bad line at once, not just the first.
func (qs *QuestionStore) ParseCSV(r io.Reader, filename string) (*QuestionSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"question", "answer"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required CSV header: %s", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var questions []protocol.QuestionRow
	var rowErrs error
	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", rowNum, err)
		}

		row := protocol.QuestionRow{
			Question:   field(record, "question"),
			Answer:     field(record, "answer"),
			Category:   field(record, "category"),
			Difficulty: field(record, "difficulty"),
		}
		if err := validateRow(row); err != nil {
			rowErrs = multierr.Append(rowErrs, fmt.Errorf("row %d: %w", rowNum, err))
			continue
		}
		questions = append(questions, row)
	}
	if rowErrs != nil {
		return nil, rowErrs
	}
	if len(questions) == 0 {
		return nil, errors.New("CSV file contains no valid questions")
	}
	if len(questions) > maxQuestionsPerSet {
		return nil, fmt.Errorf("CSV file contains too many questions (max %d)", maxQuestionsPerSet)
	}

	set := &QuestionSet{
		ID:        uuid.NewString(),
		Name:      strings.TrimSuffix(filename, ".csv"),
		Category:  dominantCategory(questions),
		Questions: questions,
		CreatedAt: time.Now(),
	}
	qs.mu.Lock()
	qs.sets[set.ID] = set
	qs.mu.Unlock()
	return set, nil
}

func validateRow(row protocol.QuestionRow) error {
	switch {
	case len(row.Question) < 10:
		return errors.New("question must be at least 10 characters long")
	case len(row.Question) > 500:
		return errors.New("question must be less than 500 characters")
	case row.Answer == "":
		return errors.New("answer cannot be empty")
	case len(row.Answer) > 200:
		return errors.New("answer must be less than 200 characters")
	}
	return nil
}

func dominantCategory(questions []protocol.QuestionRow) string {
	counts := map[string]int{}
	best, bestCount := "Mixed", 0
	for _, q := range questions {
		if q.Category == "" {
			continue
		}
		counts[q.Category]++
		if counts[q.Category] > bestCount {
			best, bestCount = q.Category, counts[q.Category]
		}
	}
	return best
}

func (qs *QuestionStore) Get(setID string) (*QuestionSet, bool) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	set, ok := qs.sets[setID]
	return set, ok
}

func (qs *QuestionStore) List() []*QuestionSet {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	out := make([]*QuestionSet, 0, len(qs.sets))
	for _, set := range qs.sets {
		out = append(out, set)
	}
	return out
}

func (qs *QuestionStore) Delete(setID string) bool {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	if _, ok := qs.sets[setID]; !ok {
		return false
	}
	delete(qs.sets, setID)
	return true
}

// Random draws a question not yet used this session. Once every question
// has been used the exclusion resets, allowing repeats after a full cycle.
func (qs *QuestionStore) Random(setID string, used map[int]bool) (protocol.QuestionRow, int, error) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	set, ok := qs.sets[setID]
	if !ok {
		return protocol.QuestionRow{}, 0, errSetNotFound
	}

	var available []int
	for i := range set.Questions {
		if !used[i] {
			available = append(available, i)
		}
	}
	if len(available) == 0 {
		for i := range set.Questions {
			available = append(available, i)
		}
	}
	idx := available[rand.Intn(len(available))]
	return set.Questions[idx], idx, nil
}

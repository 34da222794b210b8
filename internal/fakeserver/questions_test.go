package fakeserver

import (
	"strings"
	"testing"

	"go.uber.org/multierr"
)

func TestParseCSV_Valid(t *testing.T) {
	csv := strings.Join([]string{
		"question,answer,category,difficulty",
		"What is the capital of France?,Paris,geography,easy",
		"What is the largest mammal on Earth?,Blue whale,nature,medium",
		"Which planet is closest to the sun?,Mercury,geography,easy",
	}, "\n")

	store := NewQuestionStore()
	set, err := store.ParseCSV(strings.NewReader(csv), "trivia.csv")
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Questions) != 3 {
		t.Fatalf("want 3 questions, got %d", len(set.Questions))
	}
	if set.Name != "trivia" {
		t.Fatalf("want name from filename, got %q", set.Name)
	}
	if set.Category != "geography" {
		t.Fatalf("want dominant category geography, got %q", set.Category)
	}
	if _, ok := store.Get(set.ID); !ok {
		t.Fatal("parsed set not stored")
	}
}

func TestParseCSV_HeaderCaseAndOrderInsensitive(t *testing.T) {
	csv := "Answer, Question \nParis,What is the capital of France?\n"
	store := NewQuestionStore()
	set, err := store.ParseCSV(strings.NewReader(csv), "t.csv")
	if err != nil {
		t.Fatal(err)
	}
	q := set.Questions[0]
	if q.Question != "What is the capital of France?" || q.Answer != "Paris" {
		t.Fatalf("columns mismapped: %+v", q)
	}
}

func TestParseCSV_MissingRequiredHeader(t *testing.T) {
	store := NewQuestionStore()
	_, err := store.ParseCSV(strings.NewReader("question,category\nsomething long enough?,x\n"), "t.csv")
	if err == nil || !strings.Contains(err.Error(), "answer") {
		t.Fatalf("want missing-header error naming answer, got %v", err)
	}
}

func TestParseCSV_CollectsEveryRowError(t *testing.T) {
	csv := strings.Join([]string{
		"question,answer",
		"short?,Paris",                             // question under 10 chars
		"What is the capital of France?,",          // empty answer
		"What is the capital of Germany?," + strings.Repeat("x", 201), // answer too long
	}, "\n")

	store := NewQuestionStore()
	_, err := store.ParseCSV(strings.NewReader(csv), "t.csv")
	if err == nil {
		t.Fatal("want row errors")
	}
	if errs := multierr.Errors(err); len(errs) != 3 {
		t.Fatalf("want 3 row errors, got %d: %v", len(errs), errs)
	}
	for _, fragment := range []string{"row 2", "row 3", "row 4"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error should name %s: %v", fragment, err)
		}
	}
}

func TestParseCSV_EmptyAndOversized(t *testing.T) {
	store := NewQuestionStore()

	if _, err := store.ParseCSV(strings.NewReader("question,answer\n"), "t.csv"); err == nil {
		t.Fatal("want error for CSV with no rows")
	}

	var b strings.Builder
	b.WriteString("question,answer\n")
	for i := 0; i <= maxQuestionsPerSet; i++ {
		b.WriteString("What is the capital of France?,Paris\n")
	}
	if _, err := store.ParseCSV(strings.NewReader(b.String()), "t.csv"); err == nil ||
		!strings.Contains(err.Error(), "too many questions") {
		t.Fatalf("want too-many-questions error, got %v", err)
	}
}

func TestRandom_ExcludesUsedUntilExhausted(t *testing.T) {
	csv := strings.Join([]string{
		"question,answer",
		"What is the capital of France?,Paris",
		"What is the largest mammal on Earth?,Blue whale",
		"Which planet is closest to the sun?,Mercury",
	}, "\n")
	store := NewQuestionStore()
	set, err := store.ParseCSV(strings.NewReader(csv), "t.csv")
	if err != nil {
		t.Fatal(err)
	}

	used := map[int]bool{}
	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		_, idx, err := store.Random(set.ID, used)
		if err != nil {
			t.Fatal(err)
		}
		if seen[idx] {
			t.Fatalf("index %d drawn twice before exhaustion", idx)
		}
		seen[idx] = true
		used[idx] = true
	}

	// Every index used: the exclusion resets instead of erroring.
	if _, _, err := store.Random(set.ID, used); err != nil {
		t.Fatalf("exhausted draw must reset, got %v", err)
	}
}

func TestRandom_UnknownSet(t *testing.T) {
	store := NewQuestionStore()
	if _, _, err := store.Random("nope", nil); err == nil {
		t.Fatal("want error for unknown set")
	}
}

func TestDelete(t *testing.T) {
	store := NewQuestionStore()
	set, err := store.ParseCSV(strings.NewReader("question,answer\nWhat is the capital of France?,Paris\n"), "t.csv")
	if err != nil {
		t.Fatal(err)
	}
	if !store.Delete(set.ID) {
		t.Fatal("delete should succeed")
	}
	if store.Delete(set.ID) {
		t.Fatal("second delete should report missing")
	}
	if len(store.List()) != 0 {
		t.Fatal("set still listed after delete")
	}
}

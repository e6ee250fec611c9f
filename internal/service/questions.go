package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/Harshitk-cp/swarm/internal/domain"
)

const DefaultQuestionsPerRound = 4

// DatasetQuestionSource serves a fixed question set. Each round gets a
// sample chosen by a generator seeded with the round number, so every node
// works on the same questions without talking to each other.
type DatasetQuestionSource struct {
	questions []domain.Question
	perRound  int
}

func NewDatasetQuestionSource(questions []domain.Question, perRound int) *DatasetQuestionSource {
	if perRound <= 0 {
		perRound = DefaultQuestionsPerRound
	}
	return &DatasetQuestionSource{questions: questions, perRound: perRound}
}

// LoadJSONLQuestions reads one {"question": ..., "answer": ...} object per line.
func LoadJSONLQuestions(path string) ([]domain.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []domain.Question
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(text), &q); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if q.Text == "" {
			return nil, fmt.Errorf("%s:%d: empty question", path, line)
		}
		out = append(out, q)
	}
	return out, sc.Err()
}

// BuiltinQuestions is a small arithmetic set used when no dataset is given.
func BuiltinQuestions() []domain.Question {
	var out []domain.Question
	for a := 2; a <= 9; a++ {
		for _, b := range []int{3, 7, 11} {
			out = append(out,
				domain.Question{Text: fmt.Sprintf("What is %d + %d?", a, b), Answer: fmt.Sprint(a + b)},
				domain.Question{Text: fmt.Sprintf("What is %d times %d?", a, b), Answer: fmt.Sprint(a * b)},
			)
		}
	}
	return out
}

func (s *DatasetQuestionSource) Questions(ctx context.Context, round int) ([]domain.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.questions) == 0 {
		return nil, nil
	}
	n := s.perRound
	if n > len(s.questions) {
		n = len(s.questions)
	}
	rng := rand.New(rand.NewSource(int64(round)))
	idx := rng.Perm(len(s.questions))[:n]

	out := make([]domain.Question, 0, n)
	for _, i := range idx {
		out = append(out, s.questions[i])
	}
	return out, nil
}

package llm

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Harshitk-cp/swarm/internal/domain"
)

var (
	mockNumberRe   = regexp.MustCompile(`-?\d+`)
	mockStudentRe  = regexp.MustCompile(`<student>(.*?)</student> said`)
	mockIdentifyRe = regexp.MustCompile(`(?s)<identify>\s*(.*?)\s*</identify>`)
	mockQuestionRe = regexp.MustCompile(`The question we were given is: (.*?)\s*\n`)
)

// MockClient is a configurable generator for testing and simulation.
// With no Response set it answers in the expected format for each stage,
// getting arithmetic wrong with probability ErrorRate.
type MockClient struct {
	Response      string
	GenerateError error
	ErrorRate     float64

	mu  sync.Mutex
	rng *rand.Rand

	// Call tracking for assertions
	GenerateCalls [][]domain.Message
}

func NewMockClient(seed int64) *MockClient {
	return &MockClient{rng: rand.New(rand.NewSource(seed))}
}

func (c *MockClient) Generate(ctx context.Context, prompt []domain.Message, n int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.GenerateCalls = append(c.GenerateCalls, prompt)
	if c.GenerateError != nil {
		return nil, c.GenerateError
	}
	if n <= 0 {
		n = 1
	}

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if c.Response != "" {
			out = append(out, c.Response)
			continue
		}
		out = append(out, c.respond(prompt))
	}
	return out, nil
}

func (c *MockClient) respond(prompt []domain.Message) string {
	stage, _ := StageOf(prompt)
	user := ""
	if len(prompt) > 0 {
		user = prompt[len(prompt)-1].Content
	}

	switch stage {
	case domain.StageCritique:
		id := c.pickStudent(user)
		return fmt.Sprintf("<compare>\nI compared every answer.\n</compare>\n<explain>\n%s shows the cleanest working.\n</explain>\n<identify>\n%s\n</identify>\n", id, id)
	case domain.StageConsensus:
		majority := majorityIdentify(user)
		question := ""
		if m := mockQuestionRe.FindStringSubmatch(user); m != nil {
			question = m[1]
		}
		answer := c.solve(question)
		return fmt.Sprintf("<summarize_feedback>\nMost feedback picked %s.\n</summarize_feedback>\n<majority>\n%s\n</majority>\n<question>\n%s\n</question>\n<think>\nWorking it through again.\n</think>\n<answer>\n%s\n</answer>\n", majority, majority, question, answer)
	default:
		return fmt.Sprintf("<think>\nWorking it through.\n</think>\n<answer>\n%s\n</answer>\n", c.solve(user))
	}
}

// solve adds the numbers in question, or multiplies them if it says "times".
func (c *MockClient) solve(question string) string {
	nums := mockNumberRe.FindAllString(question, -1)
	if len(nums) == 0 {
		return "0"
	}
	result := 0
	if strings.Contains(question, "times") {
		result = 1
	}
	for _, s := range nums {
		v, _ := strconv.Atoi(s)
		if strings.Contains(question, "times") {
			result *= v
		} else {
			result += v
		}
	}
	if c.rng != nil && c.rng.Float64() < c.ErrorRate {
		result++
	}
	return strconv.Itoa(result)
}

func (c *MockClient) pickStudent(text string) string {
	matches := mockStudentRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "none"
	}
	i := 0
	if c.rng != nil {
		i = c.rng.Intn(len(matches))
	}
	return matches[i][1]
}

func majorityIdentify(text string) string {
	counts := make(map[string]int)
	for _, m := range mockIdentifyRe.FindAllStringSubmatch(text, -1) {
		counts[m[1]]++
	}
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys[0]
}

// Reset clears recorded calls and configured responses.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Response = ""
	c.GenerateError = nil
	c.GenerateCalls = nil
}

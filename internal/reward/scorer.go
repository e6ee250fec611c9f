package reward

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/Harshitk-cp/swarm/internal/domain"
)

var (
	answerTags    = []string{"think", "answer"}
	critiqueTags  = []string{"compare", "explain", "identify"}
	consensusTags = []string{"summarize_feedback", "majority", "question", "think", "answer"}

	answerStrict    = regexp.MustCompile(`^<think>\n.*?\n</think>\n<answer>\n.*?\n</answer>\n$`)
	answerSoft      = regexp.MustCompile(`^<think>.*?</think>\s*<answer>.*?</answer>`)
	critiqueStrict  = regexp.MustCompile(`^<compare>\n.*?\n</compare>\n<explain>\n.*?\n</explain>\n<identify>\n.*?\n</identify>\n$`)
	critiqueSoft    = regexp.MustCompile(`^<compare>.*?</compare>\s*<explain>.*?</explain>\s*<identify>.*?</identify>`)
	consensusStrict = regexp.MustCompile(`^<summarize_feedback>\n.*?\n</summarize_feedback>\n<majority>\n.*?\n</majority>\n<question>\n.*?\n</question>\n<think>\n.*?\n</think>\n<answer>\n.*?\n</answer>\n$`)
	consensusSoft   = regexp.MustCompile(`^<summarize_feedback>.*?</summarize_feedback>\s*<majority>.*?</majority>\s*<question>.*?</question>\s*<think>.*?</think>\s*<answer>.*?</answer>`)
)

// Component weights.
const (
	weightCorrectness = 2.0
	weightInt         = 0.5
	weightFormat      = 0.5
	weightProperID    = 2.0
	weightCorrectID   = 1.0
	weightConsensus   = 2.0
	weightRecreation  = 1.0
)

// StageScorer scores completions with the heuristics of the request's stage.
type StageScorer struct{}

func NewStageScorer() *StageScorer {
	return &StageScorer{}
}

func (s *StageScorer) Score(ctx context.Context, req domain.ScoringRequest) ([]domain.RewardBreakdown, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var score func(prompt, completion, answer string) domain.RewardBreakdown
	switch req.Stage {
	case domain.StageAnswer:
		score = scoreAnswer
	case domain.StageCritique:
		score = scoreCritique
	case domain.StageConsensus:
		score = scoreConsensus
	default:
		return nil, fmt.Errorf("no scorer for stage %s", req.Stage)
	}

	prompt := promptText(req.Prompt)
	out := make([]domain.RewardBreakdown, 0, len(req.Completions))
	for _, c := range req.Completions {
		out = append(out, score(prompt, c, strings.TrimSpace(req.Answer)))
	}
	return out, nil
}

func boolWeight(ok bool, w float64) float64 {
	if ok {
		return w
	}
	return 0
}

func isInteger(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func scoreAnswer(_, completion, answer string) domain.RewardBreakdown {
	extracted := extractTag(completion, "answer")

	var b domain.RewardBreakdown
	b.Add("correctness", boolWeight(answer != "" && extracted == answer, weightCorrectness))
	b.Add("int", boolWeight(isInteger(extracted), weightInt))
	b.Add("strict_format", boolWeight(answerStrict.MatchString(completion), weightFormat))
	b.Add("soft_format", boolWeight(answerSoft.MatchString(completion), weightFormat))
	b.Add("xml_count", countXML(completion, answerTags))
	return b
}

func scoreCritique(prompt, completion, answer string) domain.RewardBreakdown {
	identified := extractTag(completion, "identify")

	proper := false
	for _, id := range studentIDList(prompt) {
		if id == identified {
			proper = true
			break
		}
	}
	correct := false
	if said, ok := studentAnswers(prompt)[identified]; ok && answer != "" {
		correct = extractTag(said, "answer") == answer
	}

	var b domain.RewardBreakdown
	b.Add("proper_id", boolWeight(proper, weightProperID))
	b.Add("correct_id", boolWeight(correct, weightCorrectID))
	b.Add("strict_format", boolWeight(critiqueStrict.MatchString(completion), weightFormat))
	b.Add("soft_format", boolWeight(critiqueSoft.MatchString(completion), weightFormat))
	b.Add("xml_count", countXML(completion, critiqueTags))
	return b
}

func scoreConsensus(prompt, completion, answer string) domain.RewardBreakdown {
	majority := swarmMajority(prompt)
	question := originalQuestion(prompt)

	var b domain.RewardBreakdown
	b.Add("consensus", boolWeight(majority != "" && extractTag(completion, "majority") == majority, weightConsensus))
	b.Add("question_recreation", wordOverlap(question, extractTag(completion, "question"))*weightRecreation)
	b.Add("final_correctness", boolWeight(answer != "" && extractTag(completion, "answer") == answer, weightCorrectness))
	b.Add("strict_format", boolWeight(consensusStrict.MatchString(completion), weightFormat))
	b.Add("soft_format", boolWeight(consensusSoft.MatchString(completion), weightFormat))
	b.Add("xml_count", countXML(completion, consensusTags))
	return b
}

// swarmMajority returns the student named most often in the prompt's
// feedback, ties going to the smallest id.
func swarmMajority(prompt string) string {
	counts := make(map[string]int)
	for _, m := range identifyRe.FindAllStringSubmatch(prompt, -1) {
		counts[m[1]]++
	}
	best, bestN := "", 0
	for _, id := range domain.SortedKeys(counts) {
		if counts[id] > bestN {
			best, bestN = id, counts[id]
		}
	}
	return best
}

// wordOverlap is the Jaccard similarity of the lower-cased word sets.
func wordOverlap(a, b string) float64 {
	wa := strings.Fields(strings.ToLower(a))
	wb := strings.Fields(strings.ToLower(b))
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	set := make(map[string]int)
	for _, w := range wa {
		set[w] |= 1
	}
	for _, w := range wb {
		set[w] |= 2
	}
	both := 0
	for _, v := range set {
		if v == 3 {
			both++
		}
	}
	return float64(both) / float64(len(set))
}

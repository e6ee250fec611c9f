package reward

import (
	"regexp"
	"strings"

	"github.com/Harshitk-cp/swarm/internal/domain"
)

var (
	studentIDs = regexp.MustCompile(`<student>(.*?)</student>`)
	identifyRe = regexp.MustCompile(`(?s)<identify>\s*(.*?)\s*</identify>`)
	questionRe = regexp.MustCompile(`The question we were given is: (.*?)\s*\n`)
)

// extractTag returns the trimmed text of the last <tag> block. Text without
// the tag is returned trimmed, matching how loosely formatted answers are
// still read.
func extractTag(text, tag string) string {
	s := text
	if parts := strings.Split(s, "<"+tag+">"); len(parts) > 0 {
		s = parts[len(parts)-1]
	}
	s = strings.SplitN(s, "</"+tag+">", 2)[0]
	return strings.TrimSpace(s)
}

// countXML awards 0.125 for each well placed opening and closing tag and
// takes a small penalty for anything after the final closing tag.
func countXML(text string, tags []string) float64 {
	var count float64
	for i, tag := range tags {
		open := "\n<" + tag + ">\n"
		if i == 0 {
			open = "<" + tag + ">\n"
		}
		if strings.Count(text, open) == 1 {
			count += 0.125
		}

		last := i == len(tags)-1
		if !last {
			if strings.Count(text, "\n</"+tag+">\n") == 1 {
				count += 0.125
			}
			continue
		}

		if strings.Count(text, "\n</"+tag+">") == 1 {
			count += 0.125
			parts := strings.Split(text, "\n</"+tag+">")
			count -= float64(len(parts[len(parts)-1])-1) * 0.001
		}
	}
	return count
}

// promptText is the content of the last message, which carries the
// stage's question or transcript.
func promptText(msgs []domain.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}

// studentAnswers maps student id to the text they were quoted as saying.
func studentAnswers(prompt string) map[string]string {
	out := make(map[string]string)
	parts := strings.Split(prompt, "<student>")
	for _, part := range parts[1:] {
		id, rest, ok := strings.Cut(part, "</student>")
		if !ok {
			continue
		}
		rest = strings.TrimPrefix(strings.TrimLeft(rest, " "), "said")
		rest, _, _ = strings.Cut(rest, "After comparing these answers")
		out[id] = strings.TrimSpace(rest)
	}
	return out
}

func studentIDList(prompt string) []string {
	var ids []string
	for _, m := range studentIDs.FindAllStringSubmatch(prompt, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

func originalQuestion(prompt string) string {
	if m := questionRe.FindStringSubmatch(prompt); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

package extract

import (
	"regexp"
	"strings"

	"github.com/pkravets/thema/internal/model"
)

var (
	questionPrefix = regexp.MustCompile(`^Q[:：]\s*`)
	answerPrefix   = regexp.MustCompile(`^A[:：]\s*`)
)

// SegmentTranscript splits raw interview text into ordered Q/A blocks.
// Lines starting with "Q:"/"Q：" open a question, "A:"/"A：" lines feed
// the answer buffer, bare lines continue whichever buffer is open and
// blank lines are skipped. A question only becomes a block once it has
// at least one answer line; a trailing question without an answer is
// dropped (intentional, matching the source transcripts' shape).
func SegmentTranscript(text string) []model.QABlock {
	var blocks []model.QABlock

	var question string
	haveQuestion := false
	var answerLines []string

	flush := func() {
		if haveQuestion && len(answerLines) > 0 {
			blocks = append(blocks, model.QABlock{
				Question: strings.TrimSpace(question),
				Answer:   strings.TrimSpace(strings.Join(answerLines, "\n")),
			})
			answerLines = nil
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Q:") || strings.HasPrefix(line, "Q："):
			flush()
			question = questionPrefix.ReplaceAllString(line, "")
			haveQuestion = true

		case strings.HasPrefix(line, "A:") || strings.HasPrefix(line, "A："):
			// An empty "A:" line does not open the answer buffer
			if body := answerPrefix.ReplaceAllString(line, ""); body != "" {
				answerLines = append(answerLines, body)
			}

		default:
			if len(answerLines) > 0 {
				answerLines = append(answerLines, line)
			} else if haveQuestion {
				// Multi-line question: space-join onto the open question
				question += " " + line
			}
		}
	}

	flush()
	return blocks
}

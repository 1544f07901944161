package generator

import (
	"regexp"
	"strings"
)

var (
	// 模型偶尔会无视要求输出标题，去掉首行的一级/二级标题。
	leadingHeadingRe = regexp.MustCompile(`\A#{1,2}\s+[^\n]*\n+`)
	blankRunRe       = regexp.MustCompile(`\n{3,}`)
)

// PostProcess trims model output and enforces the no-heading rule.
// Inline markup (bold, italics, links) is left alone.
func PostProcess(raw string) (string, error) {
	text := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	text = leadingHeadingRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// WordCount is a rough count used for logging.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

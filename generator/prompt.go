package generator

import (
	"fmt"
	"strings"

	"essay_reader/essay"
)

// levelGuidance tells the model how each audience should read.
var levelGuidance = []struct {
	level essay.ReadingLevel
	hint  string
}{
	{essay.LevelChild, "Very simple language, short sentences, concrete examples."},
	{essay.LevelMiddle, "Simple vocabulary, clear explanations, relatable analogies."},
	{essay.LevelHigh, "More complex sentences, introduction to specific terminology, slightly more abstract concepts."},
	{essay.LevelUniversity, "Academic tone, use of domain-specific vocabulary, complex ideas and theories discussed."},
	{essay.LevelExpert, "Nuanced, in-depth, assumes prior knowledge, uses precise terminology."},
}

// BuildEssayPrompt 生成短文提示词。
func BuildEssayPrompt(req Request) Prompt {
	var sb strings.Builder
	sb.WriteString("You are an expert educator and concise writer.\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Write 250 to 400 words.\n")
	sb.WriteString("- Write it as a highlight or key insight from a fascinating (but fictional, if necessary) book or article on the subject.\n")
	sb.WriteString("- Never say \"This essay is from...\" or \"In this essay...\".\n")
	sb.WriteString("- The tone is insightful yet accessible; match language, depth and vocabulary to the reading level.\n")
	sb.WriteString("- Reading level guidance:\n")
	for _, g := range levelGuidance {
		sb.WriteString(fmt.Sprintf("  - '%s': %s\n", g.level, g.hint))
	}
	sb.WriteString("- Spark curiosity and deliver one or two key ideas clearly.\n")
	sb.WriteString("- Use clear paragraphs. No titles or headings inside the essay.\n")
	sb.WriteString("- No conversational filler such as \"Let's dive in\" or \"In conclusion\".\n")

	user := fmt.Sprintf("Topic: '%s'\nAudience: '%s'\nWrite the mini-essay now.", req.Subject, req.ReadingLevel)

	return Prompt{
		System: sb.String(),
		User:   user,
	}
}

package domain

// Well-known prompt names. Templates use fmt verbs; the placeholders each
// template expects are listed beside its name.
const (
	// PromptAnswer: %s question, %s context.
	PromptAnswer = "answer"

	// PromptSummarisePaper: %s title, %s abstract.
	PromptSummarisePaper = "summarise_paper"

	// PromptReview: %s topic, %s clustered summaries.
	PromptReview = "review"

	// PromptParaphrase: %s original, %s checked.
	PromptParaphrase = "paraphrase"
)

// DefaultPrompts returns the built-in prompt templates.
func DefaultPrompts() map[string]string {
	return map[string]string{
		PromptAnswer:         "Answer '%s' using context: %s",
		PromptSummarisePaper: "Summarize: Title: %s. Abstract: %s",
		PromptReview: `Topic: %s
Generate a structured literature review from these clustered summaries.
Give each cluster a heading, then compare the papers within it.

%s`,
		PromptParaphrase: `Compare the two passages below and describe any paraphrasing patterns
(synonym substitution, sentence reordering, structural rewrites).
Answer in at most three sentences. Say "none" if there are none.

Original:
%s

Checked:
%s`,
	}
}

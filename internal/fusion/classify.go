package fusion

import "strings"

// QuestionType is the advisory classification of a question. Both flags may
// be set at once; classification only biases fusion weights, never access
// control.
type QuestionType struct {
	Personal bool
	Memory   bool
}

// Conversational reports whether conversation history should be boosted.
func (qt QuestionType) Conversational() bool {
	return qt.Personal || qt.Memory
}

// personalKeywords mark questions about the user's own information.
var personalKeywords = []string{
	"my name", "i am", "i'm", "call me", "who am i", "my age", "how old",
	"where do i live", "my address", "my email", "my phone", "my number",
	"remember", "my favorite", "i like", "i love", "i hate", "i prefer",
	"what did i say", "what did we talk about", "our conversation",
}

// personalPrefixes catch first-person yes/no questions.
var personalPrefixes = []string{"am i ", "do i ", "have i ", "was i ", "were i "}

// memoryKeywords mark questions about earlier conversations.
var memoryKeywords = []string{
	"did i tell", "did i mention", "did we discuss", "did we talk",
	"previous conversation", "earlier you said", "you told me",
	"before you mentioned", "last time", "yesterday we", "previously",
}

// Classify inspects a question for personal and memory markers. Matching is
// case-insensitive substring search, so it is cheap and deterministic.
func Classify(question string) QuestionType {
	lower := strings.ToLower(question)

	var qt QuestionType
	for _, kw := range personalKeywords {
		if strings.Contains(lower, kw) {
			qt.Personal = true
			break
		}
	}
	if !qt.Personal {
		for _, prefix := range personalPrefixes {
			if strings.HasPrefix(lower, prefix) {
				qt.Personal = true
				break
			}
		}
	}
	for _, kw := range memoryKeywords {
		if strings.Contains(lower, kw) {
			qt.Memory = true
			break
		}
	}
	return qt
}

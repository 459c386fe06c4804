package service

import "strings"

// escalationPhrases is the fixed set of signals that a conversation should
// move to a human. Both inbound client text and generated replies are
// scanned against it.
var escalationPhrases = []string{
	"talk to a human",
	"talk to a person",
	"speak to human",
	"speak to a human",
	"speak with a human",
	"human agent",
	"real person",
	"live agent",
	"transfer me",
	"escalate",
	"supervisor",
	"customer representative",
}

// ContainsEscalationSignal reports whether the text asks for (or suggests)
// a human handoff. Matching is case-insensitive substring search.
func ContainsEscalationSignal(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range escalationPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

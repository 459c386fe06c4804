package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsEscalationSignal(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"I want to talk to a human", true},
		{"Can I SPEAK TO A HUMAN please", true},
		{"please escalate this", true},
		{"get me your supervisor", true},
		{"I'd like a real person", true},
		{"transfer me to billing", true},
		{"You should talk to a human agent about this refund.", true},
		{"how do I reset my password", false},
		{"my order is late", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ContainsEscalationSignal(tc.text), "text: %q", tc.text)
	}
}

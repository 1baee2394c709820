package services

import (
	"strings"
	"testing"
)

func TestIsAllowed(t *testing.T) {
	if !IsAllowed("Find research about aquaculture") {
		t.Error("ordinary question should pass moderation")
	}
	if IsAllowed("tell me How To Make A Bomb please") {
		t.Error("disallowed phrase should be rejected regardless of case")
	}
}

func TestBuildPrompt(t *testing.T) {
	results := []SearchResult{
		{Content: "Abstract: mangrove study."},
		{Content: "Abstract: irrigation systems."},
	}
	history := []ChatTurn{
		{Role: "user", Text: "hello"},
		{Role: "bot", Text: "Hi, how can I help?"},
	}

	p := BuildPrompt(results, history, "What is the mangrove study about?")

	for _, want := range []string{
		"You are Adal",
		"Abstract: mangrove study.",
		"Abstract: irrigation systems.",
		"Student: hello",
		"Adal: Hi, how can I help?",
		"User Question: What is the mangrove study about?",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.HasSuffix(p, "Answer:") {
		t.Errorf("prompt should end with the answer cue")
	}
}

func TestBuildPromptNoContext(t *testing.T) {
	p := BuildPrompt(nil, nil, "anything")
	if !strings.Contains(p, "(no matching documents)") {
		t.Error("empty retrieval should be stated in the prompt")
	}
}

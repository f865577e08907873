package chat

import (
	"fmt"
	"os"

	"github.com/lgforest/chat-relay/internal/domain"
)

func loadResumeProfile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &domain.ConfigurationError{Path: path, Err: err}
	}
	return string(data), nil
}

func resumeSystemPrompt(profile string) string {
	return fmt.Sprintf(
		"You are a recruiting assistant for a personal portfolio site. "+
			"Evaluate how well the conversation's job description matches the "+
			"candidate profile below. Answer concretely, citing the profile.\n\n"+
			"Candidate profile:\n%s", profile)
}

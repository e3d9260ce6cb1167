package rag

import (
	"fmt"
	"strings"
)

// ValidateQuestion rejects blank questions and non-positive result bounds.
func ValidateQuestion(question string, maxResults int) error {
	if strings.TrimSpace(question) == "" {
		return Permanent(ErrValidation, "query", fmt.Errorf("question must not be empty"))
	}
	if maxResults <= 0 {
		return Permanent(ErrValidation, "query", fmt.Errorf("max_results must be positive, got %d", maxResults))
	}
	return nil
}

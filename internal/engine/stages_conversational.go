package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sentinel-compliance/sentinel/internal/threads"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

// runRespond answers a conversational thread's user message. When the
// input asks for confirmation, the draft response is held for approval
// before it becomes the thread's final response.
func runRespond(ctx context.Context, rt *Runtime, t *threads.Thread) (StageOutcome, error) {
	message := ""
	if t.UserMessage != nil {
		message = strings.TrimSpace(*t.UserMessage)
	}
	if message == "" {
		return StageOutcome{}, faults.Validation("user_message", "required for conversational threads")
	}

	response := draftResponse(message)
	confirm, _ := t.Input["require_confirmation"].(bool)

	if confirm && t.HumanDecision == nil {
		return StageOutcome{Interrupt: &threads.ReviewRequest{
			ReviewType:  "response_confirmation",
			Title:       "Confirm drafted response",
			Description: "The drafted response is held until a reviewer approves it.",
			Data: map[string]any{
				"user_message": message,
				"draft":        response,
			},
			Options: decisionOptions(threads.WorkflowConversational),
		}}, nil
	}

	if t.HumanDecision != nil {
		switch decision := *t.HumanDecision; decision {
		case "approve":
			if t.HumanFeedback != nil && strings.TrimSpace(*t.HumanFeedback) != "" {
				response = *t.HumanFeedback
			}
		case "reject":
			response = "The drafted response was rejected by a reviewer."
		default:
			return StageOutcome{}, faults.Validation("decision", fmt.Sprintf("%q not allowed for conversational threads", decision))
		}
	}

	return StageOutcome{
		Complete:      true,
		ClearDecision: true,
		FinalResponse: &response,
		Detail:        map[string]any{"confirmed": confirm},
	}, nil
}

func draftResponse(message string) string {
	return fmt.Sprintf("Received: %s. Compliance assistance is limited to rules, scans, and remediation workflows.", message)
}

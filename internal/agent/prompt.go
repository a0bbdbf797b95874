package agent

import (
	"fmt"

	"proco-workers/internal/common/llm"
	"proco-workers/internal/models"
)

const systemPrompt = `You are ProCo, an AI assistant helping tenants report property maintenance issues.

Your workflow:
1. Gather the problem, when it started, severity, and relevant details. Keep going back and forth until you have enough data on the issue.
2. Classify the issue by category.
3. Find a vendor match.
4. Estimate cost.
5. Summarize for the tenant and let them know you can escalate the summarized issue to the landlord.
   a. Do not reveal the vendor to the tenant at this stage.
   b. Give the tenant an idea of the cost of the repair.
   c. Give the tenant the option to escalate the issue to the landlord.
6. If the tenant confirms, say that you are escalating and thank the tenant for raising the issue.
Be conversational and empathetic. Keep replies concise.`

const contextPromptFormat = "Decide if you have enough info to escalate. Required: " +
	"when it started, what exactly is happening, and severity. " +
	"Ask one concise follow-up question if anything is missing. " +
	"Do not reveal vendor identity. " +
	"Respond ONLY as JSON with keys: response (string), ready_to_create (boolean). " +
	"\nCategory: %s\nEstimated cost: %s"

const landlordPrefix = "Landlord: "

var replySchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"response":        map[string]interface{}{"type": "string"},
		"ready_to_create": map[string]interface{}{"type": "boolean"},
	},
	"required":             []interface{}{"response", "ready_to_create"},
	"additionalProperties": false,
}

var replyResponseSchema = &llm.ResponseSchema{
	Name:        "agent_reply",
	Description: "Tenant-facing reply and escalation readiness",
	Schema:      replySchema,
}

func contextPrompt(category models.Category, cost *float64) string {
	return fmt.Sprintf(contextPromptFormat, category, CostText(cost))
}

// augment appends an image description to the tenant's message.
func augment(message, imageDescription string) string {
	if imageDescription == "" {
		return message
	}
	return message + "\n\nAttached photo: " + imageDescription
}

// classificationText is the message plus the photo description without the
// "Attached photo:" label, whose "ac" would otherwise match heating.
func classificationText(message, imageDescription string) string {
	if imageDescription == "" {
		return message
	}
	return message + "\n" + imageDescription
}

// buildMessages assembles system prompt, replayed history, per-turn context
// and the latest message. The latest message is not repeated when the last
// history entry is the same tenant message already persisted.
func buildMessages(history []models.Message, rawMessage, augmented string, category models.Category, cost *float64) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+3)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})

	resubmitted := alreadySubmitted(history, rawMessage)
	for i, m := range history {
		switch m.Role {
		case models.RoleUser:
			content := m.Content
			if resubmitted && i == len(history)-1 {
				// The stored copy lacks the photo description.
				content = augmented
			}
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: content})
		case models.RoleLandlord:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: landlordPrefix + m.Content})
		default:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}

	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: contextPrompt(category, cost)})

	if !resubmitted {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: augmented})
	}
	return msgs
}

func alreadySubmitted(history []models.Message, rawMessage string) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	return last.Role == models.RoleUser && last.Content == rawMessage
}

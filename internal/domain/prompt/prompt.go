// Package prompt enriches raw prompts with task-specific instructions
// before they are fanned out to model adapters.
package prompt

import (
	"fmt"
	"strings"

	"github.com/parleyai/quorum/internal/domain/model"
)

// Per-task guidance appended to every outbound prompt. Unknown task
// types fall back to a generic instruction.
var taskInstructions = map[model.TaskType]string{
	model.TaskConversation: "Focus on natural, engaging conversation that moves toward lead qualification. " +
		"Consider the user's emotional state and respond appropriately.",
	model.TaskQualification: "Analyze for BANT criteria (Budget, Authority, Need, Timeline). " +
		"Look for buying signals and decision-making indicators. Answer with a 0-10 lead score.",
	model.TaskObjectionHandling: "Address concerns with empathy while maintaining sales momentum. " +
		"Provide evidence-based responses and social proof when relevant.",
	model.TaskBooking: "Guide toward scheduling a discovery call or next step. " +
		"Create urgency while remaining helpful and non-pushy.",
	model.TaskAnalysis: "Provide detailed analysis with supporting evidence. " +
		"Consider multiple perspectives and potential biases. Answer with a 0-10 score.",
}

const defaultInstruction = "Respond helpfully and accurately."

// ForTask returns the prompt annotated with the task context and its
// special instructions.
func ForTask(task model.TaskType, prompt string) string {
	instruction, ok := taskInstructions[task]
	if !ok {
		instruction = defaultInstruction
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Task Context: %s\n", task)
	fmt.Fprintf(&b, "Special Instructions: %s\n", instruction)
	return b.String()
}

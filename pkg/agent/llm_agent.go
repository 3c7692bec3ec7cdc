package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"chatmrpt-be/pkg/llm"
)

// LLMAgent answers questions through the configured LLM provider, grounding
// it with the session's dataset schema.
type LLMAgent struct {
	provider llm.LLMProvider
	logger   *log.Logger
}

var _ ReasoningAgent = &LLMAgent{}

func NewLLMAgent(provider llm.LLMProvider, logger *log.Logger) *LLMAgent {
	return &LLMAgent{provider: provider, logger: logger}
}

func (a *LLMAgent) Answer(ctx context.Context, text string, bundle ContextBundle) (string, error) {
	prompt := a.buildPrompt(text, bundle)

	response, err := a.provider.Generate(ctx, prompt, llm.WithTemperature(0.2))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			a.logger.Printf("[AGENT] Timed out answering: %v", err)
			return "", ErrTimeout
		}
		a.logger.Printf("[AGENT] Answer failed: %v", err)
		return "", &AgentError{Err: err}
	}

	reply := strings.TrimSpace(response)
	if reply == "" {
		return "", &AgentError{Err: fmt.Errorf("empty model response")}
	}
	return reply, nil
}

func (a *LLMAgent) buildPrompt(text string, bundle ContextBundle) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are a data assistant for a malaria risk analysis session.\n")
	prompt.WriteString("Answer the user's question using ONLY the dataset metadata below.\n")
	prompt.WriteString("Never invent column names that are not listed.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<dataset>\n")
	if len(bundle.DatasetColumns) == 0 {
		prompt.WriteString("No dataset uploaded yet.\n")
	} else {
		prompt.WriteString(fmt.Sprintf("ROWS: %d\n", bundle.DatasetRows))
		prompt.WriteString("COLUMNS: " + strings.Join(bundle.DatasetColumns, ", ") + "\n")
		if len(bundle.NumericColumns) > 0 {
			prompt.WriteString("NUMERIC: " + strings.Join(bundle.NumericColumns, ", ") + "\n")
		}
	}
	prompt.WriteString("</dataset>\n\n")

	if bundle.PendingSlot != "" {
		prompt.WriteString("<workflow>\n")
		prompt.WriteString(fmt.Sprintf("The user is mid-workflow at stage %s, pending input %q.\n",
			bundle.Stage, bundle.PendingSlot))
		prompt.WriteString("Answer the question, but keep it brief so they can get back to the workflow.\n")
		prompt.WriteString("</workflow>\n\n")
	}

	prompt.WriteString("<user_query>\n")
	prompt.WriteString(text)
	prompt.WriteString("\n</user_query>")

	return prompt.String()
}

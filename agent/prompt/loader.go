package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
)

var (
	//go:embed template/planner.txt
	plannerRaw string

	//go:embed template/synthesizer.txt
	synthesizerRaw string
)

// Template variables shared by the graphs that render these prompts.
const (
	VarQuery   = "query"
	VarTools   = "tools"
	VarResults = "results"
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Planner     string
	Synthesizer string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Planner:     strings.TrimSpace(plannerRaw),
		Synthesizer: strings.TrimSpace(synthesizerRaw),
	}
}

func (p PromptSet) Validate() error {
	if strings.TrimSpace(p.Planner) == "" {
		return fmt.Errorf("%w: planner", contractx.ErrPromptMissing)
	}
	if strings.TrimSpace(p.Synthesizer) == "" {
		return fmt.Errorf("%w: synthesizer", contractx.ErrPromptMissing)
	}
	return nil
}

// ChatTemplate wraps a prompt as a single user message rendered with Go
// template syntax, so literal JSON braces in the prompt need no escaping.
func ChatTemplate(text string) einoprompt.ChatTemplate {
	return einoprompt.FromMessages(schema.GoTemplate, schema.UserMessage(text))
}

package planning

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rahul/stepwright/internal/action"
	"github.com/rahul/stepwright/internal/elements"
	"github.com/rahul/stepwright/internal/scenario"
)

const defaultExecutionPrompt = `You are a test planner driving a web application through UI actions.

You receive a scenario file (XML), the list of addressable test elements (JSON) and a screenshot of the current page.
Answer ONLY with a JSON array of actions, one action per counted step (every "when" step and every "and" step between the first "when" and the first "then"), in step order.

Allowed actions:
- {"type": "findAndClick", "text": "<element test_id>"}
- {"type": "findAndType", "text": "<element test_id>", "value": "<text to type>"}
- {"type": "reload"}
- {"type": "waitForText", "text": "<visible text>", "timeout": <milliseconds>}

Use test_id values exactly as they appear in the element list. Never invent ids.`

const defaultValidationPrompt = `You are a test judge. You compare a BEFORE and an AFTER screenshot of a web application together with an excerpt of the final DOM.
For each expected condition decide whether it holds, using both the DOM and the visual evidence.
Your reply MUST start with the single word PASS or FAIL, followed by one line of rationale per condition.`

// PromptManager loads planner instructions from a directory of markdown
// files, falling back to built-in defaults.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetExecutionPrompt joins every markdown file except validation.md,
// ordering the well-known files first.
func (pm *PromptManager) GetExecutionPrompt() (string, error) {
	if pm.Directory == "" {
		return defaultExecutionPrompt, nil
	}
	files, err := os.ReadDir(pm.Directory)
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %w", err)
	}

	order := map[string]int{
		"identity.md":  1,
		"rules.md":     2,
		"actions.md":   3,
		"execution.md": 4,
	}
	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	var contents []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") || f.Name() == "validation.md" {
			continue
		}
		path := filepath.Join(pm.Directory, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
			continue
		}
		contents = append(contents, string(data))
	}

	if len(contents) == 0 {
		return defaultExecutionPrompt, nil
	}
	return strings.Join(contents, "\n\n---\n\n"), nil
}

func (pm *PromptManager) GetValidationPrompt() (string, error) {
	if pm.Directory == "" {
		return defaultValidationPrompt, nil
	}
	data, err := os.ReadFile(filepath.Join(pm.Directory, "validation.md"))
	if os.IsNotExist(err) {
		return defaultValidationPrompt, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read validation prompt: %w", err)
	}
	return string(data), nil
}

func countedList(steps []scenario.Step) string {
	var b strings.Builder
	for i, st := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, st)
	}
	return b.String()
}

func initialPlanMessage(sc scenario.Scenario, counted []scenario.Step) string {
	return fmt.Sprintf(`Plan the actions for this scenario:

%s

Counted steps (%d):
%s
Return a JSON array of exactly %d actions, one per counted step, in order.`,
		sc.Text(), len(counted), countedList(counted), len(counted))
}

func countCorrectionMessage(got, want int, counted []scenario.Step) string {
	return fmt.Sprintf(`Your plan has %d actions but exactly %d are required: one action per counted step.

Counted steps:
%s
Return the corrected JSON array of exactly %d actions and nothing else.`,
		got, want, countedList(counted), want)
}

func groundingRepairMessage(accepted action.Plan, offending action.Action, step scenario.Step, candidates []elements.TestElement, want int) string {
	var cands strings.Builder
	for _, el := range candidates {
		fmt.Fprintf(&cands, "- %s (%s) %q\n", el.ID, el.Tag, el.Text)
	}
	return fmt.Sprintf(`Action %d, %s, does not target a known element.
It was planned for the step: %s

Candidate elements:
%s
Keep these already accepted actions unchanged:
%s

Return the full JSON array of exactly %d actions with action %d using one of the candidate ids.`,
		len(accepted)+1, action.Describe(offending), step, cands.String(), accepted.JSON(), want, len(accepted)+1)
}

func rePlanMessage(executed action.Plan, current action.Plan, want int) string {
	k := len(executed)
	return fmt.Sprintf(`Actions 1 to %d have been executed:
%s

The attached element list and screenshot show the page now. The current plan is:
%s

Return the full JSON array of exactly %d actions. Actions 1 to %d MUST stay exactly as executed; only actions %d to %d may change.`,
		k, executed.JSON(), current.JSON(), want, k, k+1, want)
}

// ValidationMessage asks the validation session to judge conditions.
func ValidationMessage(conditions []scenario.Step, domExcerpt string) string {
	return fmt.Sprintf(`The first attached screenshot was taken BEFORE the scenario ran, the second AFTER.

Expected conditions:
%s
Final DOM excerpt:
%s

Judge every condition using both the DOM and the screenshots. Start your reply with PASS or FAIL, then give one rationale line per condition.`,
		countedList(conditions), domExcerpt)
}

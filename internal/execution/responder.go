package execution

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/expertmesh/internal/capability"
	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/danmuck/expertmesh/internal/routing"
)

// Responder produces one provider's answer. It stands in for a real model call.
type Responder interface {
	Respond(ctx context.Context, provider experts.Provider, q routing.Query) (string, error)
}

// TemplateResponder renders deterministic text keyed by the provider's dominant capability.
type TemplateResponder struct{}

func (TemplateResponder) Respond(ctx context.Context, p experts.Provider, q routing.Query) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	subject := strings.TrimSpace(q.Text)
	switch p.DominantCapability() {
	case capability.Python, capability.CodeGeneration:
		return fmt.Sprintf("```python\n# %s\ndef solve():\n    \"\"\"Generated by %s.\"\"\"\n    return None\n```", subject, p.Name), nil
	case capability.Poetry, capability.CreativeWriting:
		return fmt.Sprintf("In lines composed for \"%s\",\n%s offers verse where thought and rhythm meet.", subject, p.Name), nil
	case capability.MedicalTerminology, capability.Biology:
		return fmt.Sprintf("Clinical summary (%s): key terminology and biological context for \"%s\".", p.Name, subject), nil
	case capability.Blockchain, capability.SmartContracts:
		return fmt.Sprintf("Contract sketch (%s): on-chain design notes for \"%s\".", p.Name, subject), nil
	default:
		return fmt.Sprintf("%s (%s) response to \"%s\".", p.Name, p.DominantCapability(), subject), nil
	}
}

// combine returns the lone response as-is, or labeled sections in rank order.
func combine(responses []providerResponse) string {
	if len(responses) == 1 {
		return responses[0].text
	}
	var b strings.Builder
	for i, r := range responses {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "**%s** (%s):\n%s", r.name, r.providerID, r.text)
	}
	return b.String()
}

type providerResponse struct {
	providerID string
	name       string
	text       string
}

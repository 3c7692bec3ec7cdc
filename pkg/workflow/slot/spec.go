package slot

import "strings"

// Option is one canonical value a slot can take, with the variants that
// should resolve to it.
type Option struct {
	// Canonical is the value committed into the session's selections.
	Canonical string

	// Aliases are exact-match keywords (checked case-insensitively),
	// including numeric shorthands like "1"/"one".
	Aliases []string

	// TriggerPhrases are longer free-text fragments matched as substrings,
	// e.g. "community health center" for the primary facility level.
	TriggerPhrases []string

	// Help is the human-readable explanation shown on information requests.
	Help string
}

// Spec is the static description of one stage's expected input. Specs are
// built once at startup and never mutated afterwards.
type Spec struct {
	// Name is the slot key, e.g. "facility_level".
	Name string

	// Prompt is the question asked when the workflow reaches this slot.
	Prompt string

	Options []Option
}

// CanonicalValues lists the canonical value of every option, in declaration
// order.
func (s *Spec) CanonicalValues() []string {
	out := make([]string, len(s.Options))
	for i, o := range s.Options {
		out[i] = o.Canonical
	}
	return out
}

// OptionsLine renders the valid choices as a single human-readable line.
func (s *Spec) OptionsLine() string {
	return strings.Join(s.CanonicalValues(), ", ")
}

// HelpText renders per-option explanations for information requests. It is
// always slot-specific, never a generic fallback string.
func (s *Spec) HelpText() string {
	var b strings.Builder
	b.WriteString("Here is what each " + strings.ReplaceAll(s.Name, "_", " ") + " option means:\n")
	for _, o := range s.Options {
		b.WriteString("- ")
		b.WriteString(o.Canonical)
		if o.Help != "" {
			b.WriteString(": ")
			b.WriteString(o.Help)
		}
		b.WriteString("\n")
	}
	b.WriteString("Reply with one of: " + s.OptionsLine())
	return b.String()
}

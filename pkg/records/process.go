package records

import (
	"fmt"
	"strings"
)

// Process is the alternate hierarchy used for procedural documents: one
// process with ordered steps instead of a section with chunks.
type Process struct {
	Name               string   `json:"process_name"`
	DocName            string   `json:"doc_name"`
	Domain             string   `json:"domain"`
	SubDomain          string   `json:"sub_domain"`
	Introduction       string   `json:"introduction"`
	ShortDescription   string   `json:"short_description"`
	RelatedProducts    []string `json:"related_products"`
	ReferenceDocuments []string `json:"reference_documents"`
	SystemsManuals     []string `json:"systems_manuals_used"`
	FormsDocuments     []string `json:"forms_documents"`
	Steps              []Step   `json:"steps"`
}

// Step is one procedural step. Numbers are caller-supplied and need not be
// contiguous; step 0 is reserved for the synthesized introduction.
type Step struct {
	Number  int    `json:"step_number"`
	Name    string `json:"step_name"`
	Content string `json:"step_description"`
}

const introStepName = "Introduction"

// Summary composes the non-LLM summary stored on the process core record from
// the introduction, description, step listing, and reference metadata.
func (p Process) Summary() string {
	steps := make([]string, 0, len(p.Steps))
	for _, step := range p.Steps {
		steps = append(steps, fmt.Sprintf("Step %d %s", step.Number, step.Name))
	}
	parts := []string{
		"Introduction:", p.Introduction,
		"Short description:", p.ShortDescription,
		"Steps:", strings.Join(steps, "\n"),
		"Related products:", strings.Join(p.RelatedProducts, ", "),
		"Reference documents:", strings.Join(p.ReferenceDocuments, ", "),
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// Parent adapts the process to the shared Parent shape. A step 0 carrying the
// introduction is prepended so that retrieval over steps can always surface
// the process preamble.
func (p Process) Parent() Parent {
	intro := strings.TrimSpace(fmt.Sprintf(
		"Introduction:\n%s\n\nShort description:\n%s\n\nRelated products:\n%s\n\nReference documents:\n%s",
		p.Introduction,
		p.ShortDescription,
		strings.Join(p.RelatedProducts, ", "),
		strings.Join(p.ReferenceDocuments, ", "),
	))

	children := make([]Child, 0, len(p.Steps)+1)
	children = append(children, Child{Sequence: 0, Name: introStepName, Text: intro})
	for _, step := range p.Steps {
		children = append(children, Child{Sequence: step.Number, Name: step.Name, Text: step.Content})
	}

	return Parent{
		Name:    p.Name,
		DocName: p.DocName,
		Domain:  p.Domain,
		Summary: p.Summary(),
		Extra: map[string]string{
			"sub_domain":           p.SubDomain,
			"systems_manuals_used": strings.Join(p.SystemsManuals, ", "),
			"forms_documents":      strings.Join(p.FormsDocuments, ", "),
			"reference_documents":  strings.Join(p.ReferenceDocuments, ", "),
			"related_products":     strings.Join(p.RelatedProducts, ", "),
		},
		Children: children,
	}
}

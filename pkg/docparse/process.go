package docparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hellasdata/indexpipe/pkg/embeddings"
	"github.com/hellasdata/indexpipe/pkg/records"
)

// jsonObjectPattern grabs the outermost object from a reply that wraps its
// JSON in prose or a code fence.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ParseProcess decodes a model reply into a process. A reply that is not
// clean JSON gets one repair attempt on its outermost brace pair.
func ParseProcess(data []byte) (*records.Process, error) {
	var process records.Process
	if err := json.Unmarshal(data, &process); err != nil {
		repaired := jsonObjectPattern.Find(data)
		if repaired == nil {
			return nil, fmt.Errorf("reply contains no JSON object: %w", err)
		}
		if err := json.Unmarshal(repaired, &process); err != nil {
			return nil, fmt.Errorf("failed to parse process JSON: %w", err)
		}
	}
	if process.Name == "" {
		return nil, fmt.Errorf("process is missing process_name")
	}
	return &process, nil
}

// ParseProcesses decodes a reply that may describe several processes. It
// accepts a bare array, a {"processes": [...]} wrapper, or a single object.
func ParseProcesses(data []byte) ([]*records.Process, error) {
	trimmed := bytes.TrimSpace(data)

	var list []records.Process
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to parse process array: %w", err)
		}
	} else {
		var wrapper struct {
			Processes []records.Process `json:"processes"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err == nil && len(wrapper.Processes) > 0 {
			list = wrapper.Processes
		} else {
			single, err := ParseProcess(trimmed)
			if err != nil {
				return nil, err
			}
			return []*records.Process{single}, nil
		}
	}

	processes := make([]*records.Process, 0, len(list))
	for i := range list {
		if list[i].Name == "" {
			return nil, fmt.Errorf("process %d is missing process_name", i)
		}
		processes = append(processes, &list[i])
	}
	if len(processes) == 0 {
		return nil, fmt.Errorf("reply contains no processes")
	}
	return processes, nil
}

const processExtractionPrompt = `You extract banking procedures from documents.
Reply with a single JSON object with these keys:
process_name, introduction, short_description,
related_products (array of strings), reference_documents (array of strings),
systems_manuals_used (array of strings), forms_documents (array of strings),
steps (array of objects with step_number, step_name, step_description).
Use the document's own wording. Reply with JSON only.`

// ExtractProcess asks the completion model to structure docText as a process
// and fills in the document coordinates the model cannot know.
func ExtractProcess(ctx context.Context, completer Completer, model, docText, docName, domain, subDomain string) (*records.Process, error) {
	resp, err := completer.Complete(ctx, embeddings.CompletionRequest{
		Model: model,
		Messages: []embeddings.Message{
			{Role: "system", Content: processExtractionPrompt},
			{Role: "user", Content: strings.TrimSpace(docText)},
		},
		JSONResponse: true,
	})
	if err != nil {
		return nil, fmt.Errorf("process extraction failed: %w", err)
	}

	process, err := ParseProcess([]byte(resp.Content))
	if err != nil {
		return nil, err
	}
	process.DocName = docName
	process.Domain = domain
	if process.SubDomain == "" {
		process.SubDomain = subDomain
	}
	return process, nil
}

const multiProcessPrompt = `Documents sometimes describe more than one procedure.
If this one does, reply with {"processes": [...]} where each element follows the
single-process shape. If it describes exactly one, reply with that one object.`

// ExtractProcesses structures docText into one or more processes, letting the
// model decide whether the document covers a single procedure or several.
func ExtractProcesses(ctx context.Context, completer Completer, model, docText, docName, domain, subDomain string) ([]*records.Process, error) {
	resp, err := completer.Complete(ctx, embeddings.CompletionRequest{
		Model: model,
		Messages: []embeddings.Message{
			{Role: "system", Content: processExtractionPrompt + "\n" + multiProcessPrompt},
			{Role: "user", Content: strings.TrimSpace(docText)},
		},
		JSONResponse: true,
	})
	if err != nil {
		return nil, fmt.Errorf("process extraction failed: %w", err)
	}

	processes, err := ParseProcesses([]byte(resp.Content))
	if err != nil {
		return nil, err
	}
	for _, process := range processes {
		process.DocName = docName
		process.Domain = domain
		if process.SubDomain == "" {
			process.SubDomain = subDomain
		}
	}
	return processes, nil
}

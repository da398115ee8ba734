package annotator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextcodehq/nextcode-mcp/internal/llm"
	"github.com/nextcodehq/nextcode-mcp/internal/storage"
)

const unreadableDocPlaceholder = "<unreadable>"

// SynthesizeProject runs the three sequential synthesis rounds and replaces
// the project's stored summary wholesale. Round one picks the supporting
// documents worth reading from the file tree, round two condenses their
// contents into one explanation, round three infers the module graph from
// tree, per-file descriptions and explanation combined. Nothing is written on
// failure: the previous summary, if any, stays intact. The synthesis unit is
// always reported to the tracker, success or failure, so the progress stream
// terminates either way.
func (a *Annotator) SynthesizeProject(ctx context.Context, project *storage.Project, fileTree, fileDescriptions string, tracker *Tracker) error {
	if err := a.synthesizeProject(ctx, project, fileTree, fileDescriptions); err != nil {
		tracker.Update(fmt.Sprintf("failed: project analysis: %v", err))
		return err
	}
	tracker.Update("project analysis complete")
	return nil
}

func (a *Annotator) synthesizeProject(ctx context.Context, project *storage.Project, fileTree, fileDescriptions string) error {
	language := a.settings.Get().Language

	raw, err := a.service.Complete(ctx, a.config.ReasonerModel, llm.Prompt(llm.PromptProjectSummary1, language), fileTree)
	if err != nil {
		return fmt.Errorf("failed to select project documents: %w", err)
	}
	docs, err := llm.DecodeDocList(raw)
	if err != nil {
		return fmt.Errorf("failed to select project documents: %w", err)
	}

	raw, err = a.service.Complete(ctx, a.config.ChatModel, llm.Prompt(llm.PromptProjectSummary2, language), readDocumentContents(project.RootPath, docs))
	if err != nil {
		return fmt.Errorf("failed to condense project documents: %w", err)
	}
	explanation, err := llm.DecodeProjectDoc(raw)
	if err != nil {
		return fmt.Errorf("failed to condense project documents: %w", err)
	}

	composite := fmt.Sprintf("[FILETREE]\n%s\n\n[FILEDESC]\n%s\n\n[EXPLANATION]\n%s", fileTree, fileDescriptions, explanation)

	raw, err = a.service.Complete(ctx, a.config.ReasonerModel, llm.Prompt(llm.PromptSummary2Graph, language), composite)
	if err != nil {
		return fmt.Errorf("failed to infer module graph: %w", err)
	}
	result, err := llm.DecodeGraphResult(raw)
	if err != nil {
		return fmt.Errorf("failed to infer module graph: %w", err)
	}

	summary := &storage.ProjectSummary{
		ProjectID: project.ID,
		Graph:     result.Graph,
		Modules:   result.Modules,
	}
	if err := a.storage.UpsertProjectSummary(ctx, summary); err != nil {
		return fmt.Errorf("failed to persist project summary: %w", err)
	}
	return nil
}

// readDocumentContents concatenates the named documents as "[path]" headers
// followed by their content. A document that cannot be read contributes a
// placeholder body instead of failing the round.
func readDocumentContents(rootPath string, docs []string) string {
	sections := make([]string, 0, len(docs))
	for _, doc := range docs {
		body := unreadableDocPlaceholder
		content, err := os.ReadFile(filepath.Join(rootPath, filepath.FromSlash(doc)))
		if err != nil {
			logf("failed to read document %s: %v", doc, err)
		} else {
			body = string(content)
		}
		sections = append(sections, fmt.Sprintf("[%s]\n%s", doc, body))
	}
	return strings.Join(sections, "\n\n")
}

// Package story ties retrieval, prompt assembly and generation together into
// the two flows the service offers: continuing a story and finishing one.
package story

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/xhad/taleweaver/internal/types"
	"github.com/xhad/taleweaver/pkg/prompt"
)

var ErrEmptyStory = errors.New("story text is empty")

// Formatted is a finished story laid out for reading.
type Formatted struct {
	Title          string `json:"title"`
	FormattedStory string `json:"formatted_story"`
}

// Storyteller is built once at startup and shared by all requests. It holds
// no per-request state.
type Storyteller struct {
	retriever types.Retriever
	writer    types.Generator
	editor    types.Generator
}

// New wires a Storyteller. The writer continues stories; the editor formats
// and titles them. Pass the same generator twice to use one model for both.
func New(retriever types.Retriever, writer, editor types.Generator) *Storyteller {
	if editor == nil {
		editor = writer
	}
	return &Storyteller{
		retriever: retriever,
		writer:    writer,
		editor:    editor,
	}
}

// Continue retrieves inspiration for newInput and asks the writer for the
// next sentence of storySoFar.
func (s *Storyteller) Continue(ctx context.Context, newInput, storySoFar string) (string, error) {
	if newInput == "" {
		return "", ErrEmptyStory
	}

	log.Printf("[story] continue: input %d chars, story %d chars", len(newInput), len(storySoFar))

	window, err := s.retriever.Retrieve(ctx, newInput)
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}

	p := prompt.Continuation(storySoFar, window)

	reply, err := s.writer.Generate(ctx, p)
	if err != nil {
		return "", fmt.Errorf("continuation failed: %w", err)
	}

	return reply, nil
}

// Format lays the story out and gives it a title, in that order.
func (s *Storyteller) Format(ctx context.Context, storyText string) (*Formatted, error) {
	if storyText == "" {
		return nil, ErrEmptyStory
	}

	log.Printf("[story] format: story %d chars", len(storyText))

	formatted, err := s.editor.Generate(ctx, prompt.Format(storyText))
	if err != nil {
		return nil, fmt.Errorf("formatting failed: %w", err)
	}

	title, err := s.editor.Generate(ctx, prompt.Title(storyText))
	if err != nil {
		return nil, fmt.Errorf("titling failed: %w", err)
	}

	return &Formatted{
		Title:          title,
		FormattedStory: formatted,
	}, nil
}

// IsEnded reports whether text closes the story with the end marker.
func IsEnded(text string) bool {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, ".")
	return strings.HasSuffix(text, "THE END")
}

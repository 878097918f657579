package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/taleweaver/pkg/story"
)

type scriptedTeller struct {
	replies   []string
	errs      []error
	inputs    []string
	contexts  []string
	formatted string
}

func (s *scriptedTeller) Continue(_ context.Context, newInput, storySoFar string) (string, error) {
	s.inputs = append(s.inputs, newInput)
	s.contexts = append(s.contexts, storySoFar)
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
		if err != nil {
			return "", err
		}
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func (s *scriptedTeller) Format(_ context.Context, storyText string) (*story.Formatted, error) {
	s.formatted = storyText
	return &story.Formatted{Title: "The Fox", FormattedStory: "Formatted: " + storyText}, nil
}

func TestChatLoop_ModelEndsStory(t *testing.T) {
	teller := &scriptedTeller{replies: []string{"It swam.", "It reached home. THE END."}}
	var out bytes.Buffer

	err := chatLoop(context.Background(), strings.NewReader("A fox woke.\n\nThe river rose.\nnever sent\n"), &out, teller, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"A fox woke.", "The river rose."}, teller.inputs)
	assert.Equal(t, "A fox woke.", teller.contexts[0])
	assert.Equal(t, "A fox woke. It swam. The river rose.", teller.contexts[1])
	assert.Equal(t, "A fox woke. It swam. The river rose. It reached home. THE END.", teller.formatted)
	assert.Contains(t, out.String(), "The Fox")
	assert.Contains(t, out.String(), "Formatted: A fox woke.")
}

func TestChatLoop_UserEndsStory(t *testing.T) {
	teller := &scriptedTeller{replies: []string{"It swam."}}
	var out bytes.Buffer

	err := chatLoop(context.Background(), strings.NewReader("A fox woke.\nAnd slept. THE END\n"), &out, teller, false)
	require.NoError(t, err)

	assert.Len(t, teller.inputs, 1)
	assert.Equal(t, "A fox woke. It swam. And slept. THE END", teller.formatted)
}

func TestChatLoop_ExitAndEOF(t *testing.T) {
	teller := &scriptedTeller{replies: []string{"It swam."}}

	require.NoError(t, chatLoop(context.Background(), strings.NewReader("A fox woke.\nexit\n"), &bytes.Buffer{}, teller, false))
	assert.Empty(t, teller.formatted)

	require.NoError(t, chatLoop(context.Background(), strings.NewReader(""), &bytes.Buffer{}, teller, false))
	assert.Empty(t, teller.formatted)
}

func TestChatLoop_RetriesAfterError(t *testing.T) {
	teller := &scriptedTeller{
		replies: []string{"THE END."},
		errs:    []error{errors.New("model busy"), nil},
	}
	var out bytes.Buffer

	err := chatLoop(context.Background(), strings.NewReader("A fox woke.\nA fox woke.\n"), &out, teller, false)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "model busy")
	assert.Equal(t, "A fox woke.", teller.contexts[1])
	assert.Equal(t, "A fox woke. THE END.", teller.formatted)
}

// Package prompt builds the instructions sent to the generative model.
package prompt

import (
	"strings"
	"unicode/utf8"

	"github.com/xhad/taleweaver/internal/models"
)

// EndingThreshold is the story length, in characters, past which the model
// is asked to start wrapping up.
const EndingThreshold = 500

// EndMarker is what the model is told to close a finished story with.
const EndMarker = "THE END."

const continuationPreamble = "You are a skilled storyteller. Your task is to continue the given story by adding one more, next sentence to the story while maintaining " +
	"grammatical accuracy, logical flow, and a consistent narrative style. " +
	"Do not repeat any existing content.\n\n"

const continuationClosing = "Use the above inspiration as guidance but do not copy it. Ensure that the story flows naturally, humanize the response, use simpler tone. " +
	"Only give the next continued sentence. Other than that do not have anything else in the response. Do not repeat previous text given. " +
	"maintaining the established tone and style.\n\n"

// EndingGuidance is appended once the story is longer than EndingThreshold.
const EndingGuidance = "The story has exceeded 500 characters, so begin guiding it toward a satisfying conclusion. " +
	"If a natural ending is possible, conclude with '" + EndMarker + "' Otherwise, continue progressing the " +
	"narrative while preparing for an eventual resolution."

// ContinueGuidance is appended while the story is still short.
const ContinueGuidance = "Continue the story in a coherent and engaging manner."

// Continuation asks for the next sentence of storySoFar, using the window as
// inspiration.
func Continuation(storySoFar string, window models.SentenceWindow) string {
	var b strings.Builder

	b.WriteString(continuationPreamble)
	b.WriteString("### Story So Far:\n")
	b.WriteString(storySoFar)
	b.WriteString("\n\n")
	b.WriteString("### Contextual Inspiration:\n")
	b.WriteString(strings.Join(window, " "))
	b.WriteString("\n\n")
	b.WriteString(continuationClosing)

	if ShouldEnd(storySoFar) {
		b.WriteString(EndingGuidance)
	} else {
		b.WriteString(ContinueGuidance)
	}

	return b.String()
}

// ShouldEnd reports whether the story is long enough to be steered toward an
// ending. Length is counted in characters, not bytes.
func ShouldEnd(storySoFar string) bool {
	return utf8.RuneCountInString(storySoFar) > EndingThreshold
}

// Format asks the model to lay the story out for reading.
func Format(storyText string) string {
	var b strings.Builder

	b.WriteString("You are an expert at formatting stories for readability. ")
	b.WriteString("Take the following story and format it properly, ensuring:\n")
	b.WriteString("- Correct paragraph breaks.\n")
	b.WriteString("- Proper indentation or spacing.\n")
	b.WriteString("- Clear dialogue formatting with quotes on new lines.\n")
	b.WriteString("- Consistent punctuation and capitalization.\n")
	b.WriteString("- A polished and professional appearance.\n\n")
	b.WriteString("Here is the story:\n\n")
	b.WriteString(storyText)
	b.WriteString("\n\n")
	b.WriteString("Please return only the formatted story without adding explanations or extra commentary.")

	return b.String()
}

// Title asks the model for a title and nothing else.
func Title(storyText string) string {
	var b strings.Builder

	b.WriteString("You are an expert at naming stories. ")
	b.WriteString("Read the following story and write a short, catchy title that captures its theme and tone.\n\n")
	b.WriteString("Here is the story:\n\n")
	b.WriteString(storyText)
	b.WriteString("\n\n")
	b.WriteString("Return only the title, without quotes, labels, or extra commentary.")

	return b.String()
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/taleweaver/internal/app"
	"github.com/xhad/taleweaver/pkg/story"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Write a story together with the model",
	Long: `Each line you type is added to the story and the model answers with the
next part. End a line with THE END to finish; the model may end the story
too. The finished story is then formatted and given a title.

Type 'exit' to quit without formatting.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// storyteller is the part of story.Storyteller the chat loop drives.
type storyteller interface {
	Continue(ctx context.Context, newInput, storySoFar string) (string, error)
	Format(ctx context.Context, storyText string) (*story.Formatted, error)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errs[0])
	}

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	color.Cyan("\nLet's write a story. End a line with THE END to finish (type 'exit' to quit)")
	return chatLoop(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a.Storyteller, true)
}

// chatLoop reads lines from in until the story ends, then prints the
// formatted story. Turn failures are reported and the turn can be retried.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, teller storyteller, spinners bool) error {
	scanner := bufio.NewScanner(in)
	userPrompt := color.New(color.FgGreen).FprintfFunc()
	modelPrompt := color.New(color.FgCyan).FprintfFunc()
	errorPrompt := color.New(color.FgRed).FprintfFunc()

	var parts []string
	ended := false

	for !ended {
		userPrompt(out, "\nYou: ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") {
			return nil
		}

		parts = append(parts, line)
		storySoFar := strings.Join(parts, " ")

		if story.IsEnded(line) {
			ended = true
			break
		}

		wait := func() {}
		if spinners {
			spinner := getSpinner("✍️  Writing...")
			wait = func() { spinner.Finish() }
		}
		reply, err := teller.Continue(ctx, line, storySoFar)
		wait()
		if err != nil {
			// Drop the line so the turn can be retried.
			parts = parts[:len(parts)-1]
			errorPrompt(out, "Error: %v\n", err)
			continue
		}

		modelPrompt(out, "Story: %s\n", reply)
		parts = append(parts, reply)
		ended = story.IsEnded(reply)
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	if !ended {
		return nil
	}

	formatted, err := teller.Format(ctx, strings.Join(parts, " "))
	if err != nil {
		return fmt.Errorf("failed to format story: %w", err)
	}

	fmt.Fprintln(out)
	color.New(color.FgMagenta, color.Bold).Fprintln(out, formatted.Title)
	fmt.Fprintln(out)
	fmt.Fprintln(out, formatted.FormattedStory)
	return nil
}

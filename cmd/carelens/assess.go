package main

import (
	"bufio"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"CareLens/internal/assessment"
	"CareLens/internal/conversation"
	"CareLens/internal/media"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	note string
	chat bool
)

func newAssessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess FILE",
		Short: "Assess a photo, video or PDF report",
		Long: `Send one file, optionally with a description of your symptoms, and print
a structured health-information assessment.

Examples:
  # Assess a photo from the visual evidence only
  carelens assess rash.jpg

  # Add what you feel
  carelens assess rash.jpg --note "itchy for three days, no fever"

  # Keep asking questions afterwards
  carelens assess report.pdf --chat`,
		Args: cobra.ExactArgs(1),
		RunE: runAssess,
	}

	cmd.Flags().StringVarP(&note, "note", "n", "", "Description of your symptoms")
	cmd.Flags().BoolVar(&chat, "chat", false, "Start a follow-up conversation after the assessment")

	return cmd
}

func runAssess(cmd *cobra.Command, args []string) error {
	cfg, client, ctx, err := setup(cmd.Context())
	if err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := media.CheckSize(int64(len(data)), cfg.MaxUploadBytes); err != nil {
		return err
	}
	mimeType, err := media.Detect(data, mime.TypeByExtension(filepath.Ext(path)))
	if err != nil {
		return err
	}

	if outputFormat != "json" {
		printHeader(path, mimeType)
	}

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = " Analyzing with AI..."
	s.Start()

	res, err := assessment.NewRequester(client).RequestAssessment(ctx, data, mimeType, note)
	s.Stop()
	if err != nil {
		return fmt.Errorf("AI analysis failed: %w", err)
	}

	if err := displayAssessment(res.Assessment, outputFormat); err != nil {
		return err
	}
	if !chat {
		return nil
	}

	sess, err := conversation.NewSession(client, data, mimeType, res.Instruction, res.Assessment)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Println("💬 Follow-up questions (type 'exit' to quit)")
	for _, q := range res.Assessment.ConversationStarters(3) {
		fmt.Printf("   • %s\n", color.HiBlackString(q))
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(color.GreenString("\nyou › "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			break
		}

		s.Suffix = " Thinking..."
		s.Start()
		reply, err := sess.SendTurn(ctx, line)
		s.Stop()

		switch {
		case errors.Is(err, conversation.ErrEmptyMessage):
			continue
		case err != nil:
			printError(err.Error())
			sess.AppendRecovery("Sorry, I had trouble answering that. Please try asking again.")
			continue
		}
		fmt.Printf("\n%s\n", wrapText(reply, 80, "   "))
	}
	return scanner.Err()
}

package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"supportapp/internal/attachments"
	"supportapp/internal/config"
	"supportapp/internal/diagnostics"
	"supportapp/internal/flow"
	"supportapp/internal/models"
	"supportapp/internal/observability"
	"supportapp/internal/submission"
	contextutils "supportapp/internal/utils"
	"supportapp/internal/version"

	"github.com/spf13/cobra"
)

// ReportOptions holds the flags of the report command
type ReportOptions struct {
	Page        string
	Email       string
	Screenshots []string
	Recording   string
	NetworkLog  string
	AssumeYes   bool
	SubmitURL   string
}

// ReportCommand returns the interactive ticket filing command
func ReportCommand(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	var opts ReportOptions

	cmd := &cobra.Command{
		Use:   "report",
		Short: "File a support ticket from the terminal",
		Long: `File a support ticket by answering the same questions as the support widget.

The terminal, operating system and any errors hit while loading attachments are
added to the ticket as diagnostics. Nothing is sent before you give consent.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()

			capture, hooks, teardown := newReportCapture()
			defer teardown()

			env := diagnostics.NewTerminalEnvironment(os.Stdout, opts.Page, "supportapp-adm/"+version.Version)
			client := submission.NewClientWithURL(cfg, logger, opts.SubmitURL,
				submission.WithEnvironment(env),
				submission.WithErrorCapture(capture),
			)
			controller := flow.NewController(flow.Options{
				Submitter:   client,
				Environment: env,
				Limits:      attachments.LimitsFromConfig(cfg.Limits),
			})

			session := newReportSession(cmd.InOrStdin(), cmd.OutOrStdout(), controller, hooks, opts)
			if err := session.run(ctx); err != nil {
				logger.Warn(ctx, "Support ticket was not filed", map[string]interface{}{"error": err.Error()})
				return err
			}
			capture.Clear()
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Page, "page", "", "Page the problem happened on")
	cmd.Flags().StringVar(&opts.Email, "email", "", "Email address for follow-up")
	cmd.Flags().StringSliceVar(&opts.Screenshots, "screenshot", nil, "Screenshot to attach (repeatable)")
	cmd.Flags().StringVar(&opts.Recording, "recording", "", "Screen recording to attach")
	cmd.Flags().StringVar(&opts.NetworkLog, "har", "", "Network log (HAR) to attach")
	cmd.Flags().BoolVarP(&opts.AssumeYes, "yes", "y", false, "Give consent without asking")
	cmd.Flags().StringVar(&opts.SubmitURL, "submit-url", cfg.Client.SubmitURL, "Ticket endpoint")

	return cmd
}

// newReportCapture records errors emitted on a fresh hook source. The capacity is fixed
// so the ticket never carries more events than the server accepts.
func newReportCapture() (*diagnostics.ErrorCapture, *diagnostics.HookSource, func()) {
	capture := diagnostics.NewErrorCapture()
	hooks := diagnostics.NewHookSource()
	return capture, hooks, capture.Install(hooks)
}

type reportSession struct {
	scanner    *bufio.Scanner
	out        io.Writer
	controller *flow.Controller
	hooks      *diagnostics.HookSource
	opts       ReportOptions
}

func newReportSession(in io.Reader, out io.Writer, controller *flow.Controller, hooks *diagnostics.HookSource, opts ReportOptions) *reportSession {
	return &reportSession{
		scanner:    bufio.NewScanner(in),
		out:        out,
		controller: controller,
		hooks:      hooks,
		opts:       opts,
	}
}

func (s *reportSession) run(ctx context.Context) error {
	if err := s.chooseCategory(); err != nil {
		return err
	}
	if err := s.describe(); err != nil {
		return err
	}
	if err := s.attach(); err != nil {
		return err
	}
	return s.consentAndSubmit(ctx)
}

func (s *reportSession) chooseCategory() error {
	fmt.Fprintln(s.out, s.controller.Prompt())
	for i, c := range models.IssueCategories {
		fmt.Fprintf(s.out, "  %d) %s\n", i+1, c)
	}
	for {
		answer, err := s.ask("Choice: ")
		if err != nil {
			return err
		}
		n, convErr := strconv.Atoi(answer)
		if convErr != nil || n < 1 || n > len(models.IssueCategories) {
			fmt.Fprintf(s.out, "Please enter a number between 1 and %d\n", len(models.IssueCategories))
			continue
		}
		if err := s.controller.SelectCategory(models.IssueCategories[n-1]); err != nil {
			fmt.Fprintln(s.out, contextutils.UserMessage(err))
			continue
		}
		return nil
	}
}

func (s *reportSession) describe() error {
	fmt.Fprintln(s.out, s.controller.Prompt())
	for {
		var in flow.ContextInput
		var err error
		if in.PageURL, err = s.askDefault("Page URL", s.opts.Page); err != nil {
			return err
		}
		if in.WhatTryingToDo, err = s.ask("What were you trying to do? "); err != nil {
			return err
		}
		if in.WhatActuallyHappened, err = s.ask("What actually happened? "); err != nil {
			return err
		}
		if in.ErrorMessage, err = s.ask("Error message shown (optional): "); err != nil {
			return err
		}
		if in.UserEmail, err = s.askDefault("Email for follow-up (optional)", s.opts.Email); err != nil {
			return err
		}
		if err := s.controller.SetContext(in); err != nil {
			fmt.Fprintln(s.out, contextutils.UserMessage(err))
			continue
		}
		return nil
	}
}

func (s *reportSession) attach() error {
	fmt.Fprintln(s.out, s.controller.Prompt())
	for _, path := range s.opts.Screenshots {
		s.attachFile(path, s.controller.AddScreenshot)
	}
	if s.opts.Recording != "" {
		s.attachFile(s.opts.Recording, s.controller.SetRecording)
	}
	if s.opts.NetworkLog != "" {
		s.attachFile(s.opts.NetworkLog, s.controller.SetNetworkLog)
	}
	fmt.Fprintf(s.out, "%d attachment(s) added\n", s.controller.Attachments().Count())
	return s.controller.ContinueFromAttachments()
}

// attachFile reports a rejected file and carries on, like the widget does
func (s *reportSession) attachFile(path string, add func(models.Attachment) error) {
	a, err := loadAttachment(path)
	if err != nil {
		s.hooks.EmitRuntimeError(err.Error(), path, 0, 0, "")
		fmt.Fprintf(s.out, "Skipping %s: %v\n", path, err)
		return
	}
	if err := add(a); err != nil {
		fmt.Fprintf(s.out, "Skipping %s: %s\n", path, contextutils.UserMessage(err))
	}
}

func (s *reportSession) consentAndSubmit(ctx context.Context) error {
	fmt.Fprintln(s.out, s.controller.Prompt())
	given := s.opts.AssumeYes
	if !given {
		answer, err := s.ask("Send the report? [y/N] ")
		if err != nil {
			return err
		}
		given = isYes(answer)
	}
	if err := s.controller.SetConsent(given); err != nil {
		return err
	}

	for {
		res, err := s.controller.Submit(ctx)
		if err == nil {
			fmt.Fprintf(s.out, "%s Reference: %s\n", flow.PromptSubmitted, res.TicketID)
			return nil
		}
		if contextutils.IsError(err, contextutils.ErrConsentRequired) {
			fmt.Fprintln(s.out, contextutils.UserMessage(err))
			return err
		}
		fmt.Fprintf(s.out, "Submission failed: %s\n", s.controller.LastError())
		answer, askErr := s.ask("Try again? [y/N] ")
		if askErr != nil || !isYes(answer) {
			return err
		}
	}
}

func (s *reportSession) ask(question string) (string, error) {
	fmt.Fprint(s.out, question)
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", contextutils.WrapError(err, "failed to read answer")
		}
		return "", contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, "Input ended before the report was complete", "")
	}
	return strings.TrimSpace(s.scanner.Text()), nil
}

func (s *reportSession) askDefault(question, def string) (string, error) {
	if def != "" {
		question = fmt.Sprintf("%s [%s]", question, def)
	}
	answer, err := s.ask(question + ": ")
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func isYes(answer string) bool {
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/specdeck/specdeck/stream"
	"github.com/specdeck/specdeck/transcript"
)

var (
	specFile string
	thinking bool
)

var tailCmd = &cobra.Command{
	Use:   "tail <feature-id> <prompt>",
	Short: "Send a prompt on a feature and follow the stream",
	Long: `Send a prompt to the agent backend on the given feature and print the
transcript as it assembles. Ctrl-C stops the stream cleanly and keeps the
partial transcript.

Example:
  specdeck tail login-flow "Add OAuth support to the login page"`,
	Args: cobra.ExactArgs(2),
	RunE: runTailCmd,
}

func init() {
	tailCmd.Flags().StringVar(&specFile, "spec", "", "Markdown file sent as the current spec")
	tailCmd.Flags().BoolVar(&thinking, "thinking", false, "Request extended thinking")

	rootCmd.AddCommand(tailCmd)
}

func runTailCmd(cmd *cobra.Command, args []string) error {
	featureID, prompt := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := stream.SendOptions{Thinking: thinking}
	if specFile != "" {
		data, err := os.ReadFile(specFile)
		if err != nil {
			return fmt.Errorf("read spec file: %w", err)
		}
		opts.CurrentSpec = string(data)
	}

	reg := stream.NewRegistry(stream.NewHTTPAgentClient(resolveEndpoint(cfg)))
	defer reg.Close()
	stream.BindRegistry(stream.NewNotifier(printToast, nil), reg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg.SendMessage(featureID, prompt, opts)

	printed := 0
	interrupt := ctx.Done()
	for {
		select {
		case <-interrupt:
			interrupt = nil
			fmt.Println("\nstopping stream...")
			reg.StopStream(featureID)
		case id, ok := <-reg.Updates():
			if !ok {
				return nil
			}
			if id != featureID {
				continue
			}
			st, found := reg.GetStreamState(featureID)
			if !found {
				return nil
			}
			printed = printParts(st.Messages, printed, st.Status != stream.StatusStreaming)

			switch st.Status {
			case stream.StatusReady:
				printSummary(st)
				return nil
			case stream.StatusError:
				return st.Err
			}
		}
	}
}

// printParts prints the assistant turn's parts as they settle. While the
// stream runs, the final part is held back because it may still grow; once
// the stream is final everything remaining is printed.
func printParts(msgs []transcript.Message, printed int, final bool) int {
	if len(msgs) == 0 {
		return printed
	}
	last := msgs[len(msgs)-1]
	if last.Role != transcript.RoleAssistant {
		return printed
	}
	settled := len(last.Parts)
	if !final {
		settled--
	}
	for i := printed; i < settled; i++ {
		printPart(last.Parts[i])
	}
	if settled > printed {
		printed = settled
	}
	return printed
}

func printPart(p transcript.Part) {
	switch pt := p.(type) {
	case transcript.TextPart:
		fmt.Println(pt.Text)
	case transcript.ActivityPart:
		fmt.Printf("  * %s\n", pt.Message)
	case transcript.ToolCallPart:
		fmt.Printf("  > %s\n", pt.Name)
	case transcript.DocumentPart:
		fmt.Printf("--- generated spec (%d chars) ---\n", len(pt.Markdown))
	case transcript.ProposedUpdatePart:
		fmt.Printf("--- proposed change: %s ---\n", pt.ChangeSummary)
	case transcript.WireframePart:
		fmt.Println(pt.Text)
	case transcript.ClarificationPart:
		for _, q := range pt.Questions {
			fmt.Printf("  ? %s\n", q.Question)
			for _, opt := range q.Options {
				fmt.Printf("    - %s\n", opt)
			}
		}
	case transcript.ToolErrorPart:
		fmt.Printf("  ! %s\n", pt.Message)
	case transcript.ShellCommandPart:
		fmt.Printf("  $ %s\n", pt.Command)
	case transcript.RawPart:
		fmt.Printf("  [%s] %s\n", pt.MessageType, string(pt.Data))
	}
}

func printSummary(st stream.FeatureState) {
	if st.ContextUsage != nil {
		fmt.Printf("\ndone: $%.4f over %d turns\n", st.ContextUsage.CostUSD, st.ContextUsage.Turns)
	}
	if st.PendingChange != nil {
		fmt.Printf("pending change awaiting review: %s\n", st.PendingChange.ChangeSummary)
	}
}

func printToast(t stream.Toast) {
	fmt.Printf("[%s] %s\n", strings.ToUpper(string(t.Level)), t.Message)
}

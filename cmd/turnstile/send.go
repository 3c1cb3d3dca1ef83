package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/turnstile/internal/cli"
	"github.com/aretw0/turnstile/internal/presentation/tui"
	"github.com/aretw0/turnstile/pkg/platforms/core"
)

// consoleHost feeds one decoded payload to the engine and keeps what it answers.
type consoleHost struct {
	payload  map[string]any
	response any
	failure  error
}

func (h *consoleHost) RequestObject() (map[string]any, error) { return h.payload, nil }

func (h *consoleHost) Headers() map[string][]string { return map[string][]string{} }

func (h *consoleHost) SetResponse(_ context.Context, payload any) error {
	h.response = payload
	return nil
}

func (h *consoleHost) Fail(_ context.Context, err error) {
	h.failure = err
}

var sendCmd = &cobra.Command{
	Use:   "send <payload-file|->",
	Short: "Run one turn from a JSON or YAML payload",
	Long: `Reads a request payload from a file (or stdin with "-"), runs it through the
configured application and prints the response. On a terminal the speech of core
platform replies is previewed; use --json for the raw response.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		payload, err := readPayload(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		rt, err := cli.Build(cmd.Context(), cfg, logger, cli.WithTraceOutput(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		defer rt.Close()

		host := &consoleHost{payload: payload}
		turn, err := rt.App.Handle(cmd.Context(), host)
		if host.response == nil {
			if host.failure != nil {
				return fmt.Errorf("turn failed: %w", host.failure)
			}
			return err
		}

		out := cmd.OutOrStdout()
		resp, isCore := host.response.(core.Response)
		if !asJSON && isCore && isTerminal(out) {
			render, err := tui.NewRenderer(80)
			if err != nil {
				return err
			}
			md := tui.SpeechMarkdown(turn.Route, resp.Response.Output.Speech, resp.Response.Output.Reprompt, resp.Response.ShouldEndSession)
			rendered, err := render(md)
			if err != nil {
				return err
			}
			fmt.Fprint(out, rendered)
			return nil
		}

		data, err := json.MarshalIndent(host.response, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	},
}

// readPayload decodes YAML, which also accepts JSON documents.
func readPayload(stdin io.Reader, path string) (map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	payload := map[string]any{}
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if len(payload) == 0 {
		return nil, errors.New("payload is empty")
	}
	return payload, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().Bool("json", false, "Print the raw response as JSON")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/specdeck/specdeck/devserver"
)

var (
	listenAddr string
	scriptPath string
)

// demoScript plays when no script file is given, so "specdeck serve" works
// out of the box against "specdeck tail".
const demoScript = `
steps:
  - event: {type: activity, message: "Reading the current spec"}
  - delay: 200ms
    event: {type: text, content: "Drafting the requested changes."}
  - delay: 200ms
    event: {type: tool_result, name: generateSpec, output: {markdown: "# Demo Spec\n\nGenerated by the specdeck devserver."}}
  - event: {type: done, result: success, cost: 0.01, turns: 1}
`

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scripted stub agent endpoint",
	Long: `Serve a scripted agent backend. Every chat request plays the script as an
SSE stream; the stop route aborts an in-flight playback.

Example:
  specdeck serve --script demo.yaml --listen :8787`,
	Args: cobra.NoArgs,
	RunE: runServeCmd,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default "+defaultListen+")")
	serveCmd.Flags().StringVar(&scriptPath, "script", "", "Script file (.yaml or .jsonl); a built-in demo plays if unset")

	rootCmd.AddCommand(serveCmd)
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := scriptPath
	if path == "" {
		path = cfg.Script
	}

	var script *devserver.Script
	if path != "" {
		script, err = devserver.LoadScript(path)
	} else {
		script, err = devserver.ParseYAML([]byte(demoScript))
	}
	if err != nil {
		return err
	}

	addr := listenAddr
	if addr == "" {
		addr = cfg.Listen
	}
	if addr == "" {
		addr = defaultListen
	}

	srv := devserver.New(script)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("devserver: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}

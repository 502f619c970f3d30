package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/kudato/fcosinstall/cmd/fcosinstall"
	"github.com/kudato/fcosinstall/pkg/output"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := fcosinstall.NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil && !fcosinstall.Reported(err) {
		errorStyle := output.DefaultStyles().Build(lipgloss.NewRenderer(os.Stderr)).Get("Error")
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("Error: %v", err)))
		fmt.Fprintln(os.Stderr, "Run 'fcosinstall --help' for usage.")
	}
	os.Exit(fcosinstall.ExitCode(err))
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "basetips",
		Short: "Tip jar for Base merchants with Sign-In with Ethereum",
		Long: `basetips serves the merchant dashboard backend: wallet sign-in
over SIWE, a feed of recent tips and printable QR stickers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		serveCmd(),
		signinCmd(),
		qrCmd(),
	)

	return cmd
}

// flagKey maps a flag name to its config key
func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

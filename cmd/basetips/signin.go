package main

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/layer-3/basetips/client"
	"github.com/layer-3/basetips/internal/logging"
	"github.com/layer-3/basetips/wallet"
	"github.com/spf13/cobra"
)

func signinCmd() *cobra.Command {
	var (
		key     string
		server  string
		domain  string
		chainID int
		timeout time.Duration
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in to a basetips server with a local key",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wallet.Load(key)
			if err != nil {
				return err
			}

			u, err := url.Parse(server)
			if err != nil || u.Host == "" {
				return fmt.Errorf("invalid server url %q", server)
			}
			if domain == "" {
				domain = u.Host
			}

			api, err := client.NewAPI(server, nil)
			if err != nil {
				return err
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger := logging.New(os.Stderr, level, "console")

			o := client.NewOrchestrator(api, w, client.Config{
				Domain:      domain,
				URI:         u.Scheme + "://" + u.Host,
				ChainID:     chainID,
				SignTimeout: timeout,
			}, logger)

			identity, err := o.SignIn(cmd.Context())
			if err != nil {
				return fmt.Errorf("sign-in failed in state %s: %w", o.State(), err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s on chain %d\n", identity.Address, identity.ChainID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&key, "key", "", "hex private key or path to a key file")
	flags.StringVar(&server, "server", "http://localhost:9000", "basetips server url")
	flags.StringVar(&domain, "domain", "", "domain to put in the challenge; defaults to the server host")
	flags.IntVar(&chainID, "chain-id", 8453, "chain id to sign for")
	flags.DurationVar(&timeout, "timeout", client.DefaultSignTimeout, "how long to wait for the signature")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log each handshake step")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

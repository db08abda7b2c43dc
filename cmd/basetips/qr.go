package main

import (
	"fmt"
	"os"

	"github.com/layer-3/basetips/adapters/qr"
	"github.com/spf13/cobra"
)

func qrCmd() *cobra.Command {
	var (
		address string
		out     string
		size    int
	)

	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Write a printable tip sticker for an address",
		RunE: func(cmd *cobra.Command, args []string) error {
			png, err := qr.NewEncoder().PNG(address, size)
			if err != nil {
				return err
			}

			if out == "-" {
				_, err = cmd.OutOrStdout().Write(png)
				return err
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("failed to write sticker: %w", err)
			}

			uri, _ := qr.PaymentURI(address)
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s)\n", out, uri)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&address, "address", "", "payout address")
	flags.StringVarP(&out, "out", "o", "sticker.png", "output file, - for stdout")
	flags.IntVar(&size, "size", qr.DefaultSize, "image size in pixels")
	_ = cmd.MarkFlagRequired("address")

	return cmd
}

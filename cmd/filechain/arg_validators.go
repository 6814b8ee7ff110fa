package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"filechain/internal/models"
)

func requireExactlyArgs(count int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != count {
			return errors.New(message)
		}
		return nil
	}
}

// requireHashArg accepts exactly one 64-character hex hash.
func requireHashArg(message string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := requireExactlyArgs(1, message)(cmd, args); err != nil {
			return err
		}
		if !models.IsContentHash(strings.ToLower(strings.TrimSpace(args[0]))) {
			return errors.New("hash must be 64 hex characters")
		}
		return nil
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"filechain/internal/api"
	"filechain/internal/config"
	"filechain/internal/models"
)

func newFilesCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var ownerID string

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List a user's files, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(ownerID) == "" {
				return fmt.Errorf("--user is required")
			}
			return withClient(cfg, func(client *api.Client) error {
				files, err := client.ListFiles(cmd.Context(), ownerID)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(files)
				}
				return writeFileList(files)
			})
		},
	}

	cmd.Flags().StringVarP(&ownerID, "user", "u", "", "owner user id (required)")
	return cmd
}

func newTransactionsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var ownerID string

	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txs"},
		Short:   "List a user's ledger transactions, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(ownerID) == "" {
				return fmt.Errorf("--user is required")
			}
			return withClient(cfg, func(client *api.Client) error {
				txs, err := client.ListTransactions(cmd.Context(), ownerID)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(txs)
				}
				return writeTransactionList(txs)
			})
		},
	}

	cmd.Flags().StringVarP(&ownerID, "user", "u", "", "owner user id (required)")
	return cmd
}

func newShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <hash>",
		Short: "Show the file record for a content hash",
		Args:  requireHashArg("hash is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				file, err := client.GetFile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(file)
				}
				return writeFileDetail(file)
			})
		},
	}
}

func newTxCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "tx <tx_hash>",
		Short: "Show one ledger transaction",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := requireExactlyArgs(1, "tx hash is required")(cmd, args); err != nil {
				return err
			}
			if !models.IsTransactionHash(strings.ToLower(strings.TrimSpace(args[0]))) {
				return fmt.Errorf("tx hash must be 64 hex characters")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				tx, err := client.GetTransaction(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(tx)
				}
				return writeTransactionDetail(tx)
			})
		},
	}
}

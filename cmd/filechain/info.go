package main

import (
	"github.com/spf13/cobra"

	"filechain/internal/api"
	"filechain/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server, ledger and storage info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(resp)
				}

				_ = writePlain("version: %s\n", resp.Version)
				_ = writePlain("db_path: %s\n", cfg.DBPath)
				_ = writePlain("data_dir: %s\n", cfg.DataDir)
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				_ = writePlain("storage_backend: %s\n", resp.StorageBackend)
				_ = writePlain("cache_enabled: %t\n", resp.CacheEnabled)
				_ = writePlain("files: %d\n", resp.Files)
				_ = writePlain("transactions: %d\n", resp.Transactions)
				_ = writePlain("blobs: %d\n", resp.Blobs)
				return writePlain("stored_bytes: %d\n", resp.StoredBytes)
			})
		},
	}
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"filechain/internal/api"
	"filechain/internal/config"
	"filechain/internal/format"
)

func newAdminCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(newAdminGCCmd(cfg, jsonOutput))
	cmd.AddCommand(newAdminVerifyCmd(cfg, jsonOutput))
	cmd.AddCommand(newAdminExportCmd(cfg))
	return cmd
}

func newAdminGCCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove stored content that no file record references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.AdminGC(cmd.Context(), apply)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				mode := "dry run"
				if !resp.DryRun {
					mode = "applied"
				}
				if err := writePlain("%s: candidates=%d deleted=%d failed=%d reclaimed_bytes=%d\n", mode, resp.CandidateCount, resp.DeletedCount, resp.FailedCount, resp.ReclaimedBytes); err != nil {
					return err
				}
				for _, hash := range resp.Candidates {
					if err := writePlain("  %s\n", hash); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete orphaned content (default: dry run)")
	return cmd
}

func newAdminVerifyCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-hash stored content and update file statuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.AdminVerify(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if err := writePlain("checked=%d verified=%d failed=%d\n", resp.Checked, resp.Verified, resp.Failed); err != nil {
					return err
				}
				for _, hash := range resp.FailedHashes {
					if err := writePlain("  failed: %s\n", hash); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newAdminExportCmd(cfg *config.Config) *cobra.Command {
	var (
		formatName string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every file and transaction record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := format.ForName(formatName)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				snapshot, err := client.AdminExport(cmd.Context())
				if err != nil {
					return err
				}
				if outputPath == "" {
					return formatter.Write(stdout, snapshot)
				}
				f, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				if err := formatter.Write(f, snapshot); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}

	cmd.Flags().StringVar(&formatName, "format", "json", "output format (json or yaml)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: stdout)")
	return cmd
}

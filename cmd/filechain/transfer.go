package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"filechain/internal/api"
	"filechain/internal/config"
	"filechain/internal/mediatype"
)

func newUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		ownerID    string
		privateKey string
		filename   string
		mediaType  string
	)

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file and record it on the ledger",
		Args:  requireExactlyArgs(1, "path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(privateKey) == "" {
				return fmt.Errorf("--user and --key are required")
			}

			path := args[0]
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			name := strings.TrimSpace(filename)
			if name == "" {
				name = filepath.Base(path)
			}
			declared := strings.TrimSpace(mediaType)
			if declared == "" {
				declared = mediatype.ForFilename(name)
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Upload(cmd.Context(), api.UploadRequest{
					Filename:   name,
					MediaType:  declared,
					OwnerID:    ownerID,
					PrivateKey: privateKey,
					Body:       file,
				})
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if err := writePlain("ipfs_hash: %s\n", resp.IPFSHash); err != nil {
					return err
				}
				return writePlain("tx_hash: %s\n", resp.TxHash)
			})
		},
	}

	cmd.Flags().StringVarP(&ownerID, "user", "u", "", "owner user id (required)")
	cmd.Flags().StringVarP(&privateKey, "key", "k", "", "private key recorded with the upload (required)")
	cmd.Flags().StringVar(&filename, "name", "", "filename to record (default: base name of path)")
	cmd.Flags().StringVar(&mediaType, "type", "", "media type to declare (default: from extension)")
	return cmd
}

func newDownloadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		version    int
		privateKey string
		outputPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "download <hash>",
		Short: "Download the stored bytes of a file",
		Args:  requireHashArg("hash is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.DownloadRequest{
				FileHash:   strings.ToLower(strings.TrimSpace(args[0])),
				Version:    version,
				PrivateKey: privateKey,
			}

			return withClient(cfg, func(client *api.Client) error {
				if outputPath == "-" {
					_, err := client.Download(cmd.Context(), req, os.Stdout)
					return err
				}

				dir := "."
				if outputPath != "" {
					dir = filepath.Dir(outputPath)
				}
				tmp, err := os.CreateTemp(dir, ".filechain-download-*")
				if err != nil {
					return err
				}
				tmpPath := tmp.Name()
				defer os.Remove(tmpPath)

				result, err := client.Download(cmd.Context(), req, tmp)
				if closeErr := tmp.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					return err
				}

				dest, err := downloadDestination(outputPath, result.Filename, req.FileHash, force)
				if err != nil {
					return err
				}
				if err := os.Rename(tmpPath, dest); err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(map[string]any{
						"path":       dest,
						"filename":   result.Filename,
						"media_type": result.MediaType,
						"size":       result.Size,
					})
				}
				return writePlain("saved %s (%s, %s)\n", dest, result.MediaType, formatSize(result.Size))
			})
		},
	}

	cmd.Flags().IntVar(&version, "version", 1, "file version")
	cmd.Flags().StringVarP(&privateKey, "key", "k", "", "private key sent with the request")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output path, or - for stdout (default: recorded filename)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// downloadDestination picks the output path and refuses to clobber existing
// files unless force is set.
func downloadDestination(outputPath, served, hash string, force bool) (string, error) {
	dest := outputPath
	if dest == "" {
		dest = filepath.Base(strings.TrimSpace(served))
		if dest == "" || dest == "." || dest == string(filepath.Separator) {
			dest = hash
		}
	}
	if !force {
		if _, err := os.Stat(dest); err == nil {
			return "", fmt.Errorf("%s already exists (use --force to overwrite)", dest)
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}
	return dest, nil
}

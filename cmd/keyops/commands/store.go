package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/keyops/internal/config"
	kerrors "github.com/systmms/keyops/internal/errors"
	"github.com/systmms/keyops/internal/secure"
	"github.com/systmms/keyops/pkg/keyring"
)

func NewStoreCommand(cfg *config.Config) *cobra.Command {
	var (
		storeName    string
		filePath     string
		friendlyName string
	)

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Store a key document",
		Long: `Read an XML key document and write it to the store as a new record.

The record name is taken from --name, falling back to the document's id
attribute, falling back to a random UUID. The store's prefix is always
applied.

Examples:
  # Store a document from a file
  keyops store --store production --file key.xml

  # Store from stdin under an explicit name
  cat key.xml | keyops store --store production --name key-2026-08`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var data []byte
			var err error
			if filePath == "" || filePath == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(filePath)
			}
			if err != nil {
				return kerrors.UserError{
					Message:    "Failed to read key document",
					Details:    err.Error(),
					Suggestion: "Pass --file <path> or pipe the document on stdin",
					Err:        err,
				}
			}

			if len(data) == 0 {
				return kerrors.UserError{
					Message:    "Key document is empty",
					Suggestion: "Pass --file <path> or pipe a non-empty document on stdin",
				}
			}

			// Key material stays in locked memory between read and store
			material, err := secure.NewKeyMaterial(data)
			if err != nil {
				return err
			}
			defer material.Destroy()

			text, err := material.Open()
			if err != nil {
				return err
			}
			defer text.Destroy()

			doc, err := keyring.ParseKeyDocument(string(text.Bytes()))
			if err != nil {
				return kerrors.UserError{
					Message:    "Key document is not well-formed XML",
					Details:    err.Error(),
					Suggestion: "Check the document for truncation or encoding issues",
					Err:        err,
				}
			}

			store, err := openStore(ctx, cfg, storeName)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.StoreElement(ctx, doc, friendlyName); err != nil {
				return err
			}

			cfg.Logger.Info("Stored key document in %s", storeName)
			return nil
		},
	}

	cmd.Flags().StringVar(&storeName, "store", "", "Store name from keyops.yaml")
	cmd.Flags().StringVar(&filePath, "file", "", "Path to the XML key document (- for stdin)")
	cmd.Flags().StringVar(&friendlyName, "name", "", "Friendly name for the record")

	return cmd
}

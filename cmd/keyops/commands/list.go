package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/keyops/internal/config"
)

func NewListCommand(cfg *config.Config) *cobra.Command {
	var (
		storeName  string
		jsonOutput bool
		showXML    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the key documents in a store",
		Long: `List every key document the store holds.

Documents whose payload is not well-formed XML are skipped with a
warning; they never abort the listing.

Examples:
  # List documents in the production store
  keyops list --store production

  # Emit ids as JSON for scripting
  keyops list --store production --json

  # Dump the full XML of each document
  keyops list --store production --xml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx, cfg, storeName)
			if err != nil {
				return err
			}
			defer store.Close()

			documents, err := store.GetAllElements(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				ids := make([]string, 0, len(documents))
				for _, doc := range documents {
					ids = append(ids, doc.ID())
				}
				return json.NewEncoder(os.Stdout).Encode(ids)
			}

			if len(documents) == 0 {
				cfg.Logger.Info("Store %s holds no key documents", storeName)
				return nil
			}

			for _, doc := range documents {
				if showXML {
					text, err := doc.Serialize()
					if err != nil {
						return err
					}
					fmt.Fprintln(os.Stdout, text)
					continue
				}
				id := doc.ID()
				if id == "" {
					id = "(no id)"
				}
				fmt.Fprintf(os.Stdout, "%s\t%s\n", id, doc.Root().Tag)
			}
			cfg.Logger.Info("Listed %d key document(s) from %s", len(documents), storeName)
			return nil
		},
	}

	cmd.Flags().StringVar(&storeName, "store", "", "Store name from keyops.yaml")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output document ids as JSON")
	cmd.Flags().BoolVar(&showXML, "xml", false, "Output full XML documents")

	return cmd
}

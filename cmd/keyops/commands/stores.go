package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/keyops/internal/config"
	"github.com/systmms/keyops/internal/repositories"
)

func NewStoresCommand(cfg *config.Config) *cobra.Command {
	var showTypes bool

	cmd := &cobra.Command{
		Use:   "stores",
		Short: "List configured stores",
		Long: `Show the stores defined in keyops.yaml.

Use --types to list the store types this build supports instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showTypes {
				registry := repositories.NewRegistry(cfg.Logger)
				for _, storeType := range registry.SupportedTypes() {
					fmt.Fprintln(os.Stdout, storeType)
				}
				return nil
			}

			if err := cfg.Load(); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STORE\tTYPE")
			for _, name := range cfg.StoreNames() {
				store, err := cfg.GetStore(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\n", name, store.Type)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&showTypes, "types", false, "List supported store types")

	return cmd
}

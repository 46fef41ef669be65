package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ehrlich-b/synctext/internal/config"
	"github.com/ehrlich-b/synctext/internal/daemon"
	"github.com/ehrlich-b/synctext/internal/registry"
)

func main() {
	runID := uuid.NewString()

	root := &cobra.Command{
		Use:   "stc",
		Short: "synctext — auxiliary CLI for the replication daemon",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if os.Getenv("STC_DEBUG") != "" {
				fmt.Fprintf(os.Stderr, "run %s\n", runID)
			}
		},
	}

	root.AddCommand(seedCmd(), peersCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func seedCmd() *cobra.Command {
	var metaPath string

	cmd := &cobra.Command{
		Use:   "seed <path>",
		Short: "Write the default document, optionally with a YAML metadata banner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", path)
			}

			body := daemon.DefaultDoc
			basePath := filepath.Join(filepath.Dir(path), config.Defaults().DocBaseName)
			if data, err := os.ReadFile(basePath); err == nil {
				body = string(data)
			}
			if metaPath != "" {
				banner, err := loadMetaBanner(metaPath)
				if err != nil {
					return fmt.Errorf("load meta: %w", err)
				}
				body = banner + body
			}

			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Printf("seeded: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&metaPath, "meta", "", "YAML file of front-matter to prepend")
	return cmd
}

func peersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List the live peers in the shared registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.Open()
			if err != nil {
				return fmt.Errorf("open registry: %w", err)
			}
			defer reg.Close()

			snap := reg.Snapshot()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "UID\tQUEUE\tACTIVE")
			for _, p := range snap {
				if p.UID == "" {
					continue
				}
				active := "no"
				if p.Active {
					active = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.UID, p.QueueName, active)
			}
			return w.Flush()
		},
	}
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ehrlich-b/synctext/internal/daemon"
	"github.com/ehrlich-b/synctext/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	var docPath string
	var logLevel string
	var logFile string

	root := &cobra.Command{
		Use:   "stcd <uid>",
		Short: "synctext replication daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logLevel, logFile); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			uid := args[0]
			if docPath == "" {
				docPath = uid + "_doc.txt"
			}
			dir := filepath.Dir(docPath)

			return daemon.Run(daemon.Options{
				UID:     uid,
				DocPath: docPath,
				Dir:     dir,
			})
		},
	}

	root.Flags().StringVar(&docPath, "doc", "", "document path to replicate (default <uid>_doc.txt)")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.Flags().StringVar(&logFile, "log-file", "", "optional log file path")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

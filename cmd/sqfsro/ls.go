package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/embedfs/sqfsro"
)

func newLsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <image> <path>",
		Short: "List a directory's entries",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			partition, _ := cmd.Flags().GetInt("partition")

			return runLs(args[0], args[1], partition)
		},
	}
}

func runLs(image, path string, partition int) error {
	m, err := sqfsro.ProbePath(image, partition)
	if err != nil {
		return fmt.Errorf("probe %s: %w", image, err)
	}
	defer m.Close()

	ds, err := m.OpenDir(path)
	if err != nil {
		return fmt.Errorf("open_dir %s: %w", path, err)
	}
	defer ds.Close()

	for {
		entry, err := ds.ReadDir()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("readdir: %w", err)
		}

		fmt.Printf("%-6s %10d  %s\n", entry.Kind, entry.Size, entry.Name)
	}
}

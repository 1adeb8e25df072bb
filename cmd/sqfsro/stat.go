package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embedfs/sqfsro"
)

func newStatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <image> <path>",
		Short: "Print a path's type and size",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			partition, _ := cmd.Flags().GetInt("partition")

			return runStat(args[0], args[1], partition)
		},
	}
}

func runStat(image, path string, partition int) error {
	m, err := sqfsro.ProbePath(image, partition)
	if err != nil {
		return fmt.Errorf("probe %s: %w", image, err)
	}
	defer m.Close()

	size, err := m.Size(path)
	if err != nil {
		fmt.Printf("%s: not a regular file (%v)\n", path, err)

		return nil
	}

	fmt.Printf("%s: %d bytes\n", path, size)

	return nil
}

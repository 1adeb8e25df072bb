package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/embedfs/sqfsro"
)

func newCatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <image> <path>",
		Short: "Print a file's content to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			partition, _ := cmd.Flags().GetInt("partition")

			return runCat(args[0], args[1], partition)
		},
	}
}

func runCat(image, path string, partition int) error {
	m, err := sqfsro.ProbePath(image, partition)
	if err != nil {
		return fmt.Errorf("probe %s: %w", image, err)
	}
	defer m.Close()

	size, err := m.Size(path)
	if err != nil {
		return fmt.Errorf("size %s: %w", path, err)
	}

	buf := make([]byte, size)

	n, err := m.Read(path, buf, 0, 0)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	_, err = os.Stdout.Write(buf[:n])

	return err
}

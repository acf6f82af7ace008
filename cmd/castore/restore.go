package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/javanhut/castore/internal/archive"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <destination>",
	Short: "Materialize a NAR archive from stdin into destination",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := bufio.NewReader(os.Stdin)
		sink := archive.NewDiskSink(args[0])
		if err := archive.Restore(r, sink, 0); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		return nil
	},
}

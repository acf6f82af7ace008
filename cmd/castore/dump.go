package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/javanhut/castore/internal/archive"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <path>",
	Short: "Serialize a filesystem path to a NAR archive on stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := bufio.NewWriter(os.Stdout)
		if err := archive.Dump(w, args[0], nil); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		return w.Flush()
	},
}

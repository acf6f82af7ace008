package main

import (
	"fmt"

	"github.com/javanhut/castore/internal/xhash"
	"github.com/spf13/cobra"
)

var (
	addPathAlgo   string
	addPathRepair bool
)

var addPathCmd = &cobra.Command{
	Use:   "add-path <name> <host-path>",
	Short: "Hash, canonicalize, and register a host path as a fixed-output store path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		algo, err := xhash.ParseType(addPathAlgo)
		if err != nil {
			return err
		}

		s, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("add-path: %w", err)
		}
		defer s.Close()

		p, err := s.AddPath(cmd.Context(), args[0], args[1], algo, nil, addPathRepair)
		if err != nil {
			return fmt.Errorf("add-path: %w", err)
		}
		fmt.Println(p.String())
		return nil
	},
}

func init() {
	addPathCmd.Flags().StringVar(&addPathAlgo, "type", "sha256", "hash algorithm for the content hash (of a file, or of a directory's archive)")
	addPathCmd.Flags().BoolVar(&addPathRepair, "repair", false, "re-materialize the path even if it is already valid")
}

package main

import (
	"fmt"
	"os"

	"github.com/javanhut/castore/internal/config"
	"github.com/javanhut/castore/internal/localstore"
	"github.com/spf13/cobra"
)

const castoreVersion = "0.1.0"

var version bool

var rootCmd = &cobra.Command{
	Use:   "castore",
	Short: "castore manages a content-addressed package store",
	Long:  `castore is a content-addressed package store modeled on the Nix store: fixed-output and text-hashed paths, NAR archives, and a SQLite catalog of what's valid.`,
	Run: func(cmd *cobra.Command, args []string) {
		if version {
			fmt.Printf("castore version %s\n", castoreVersion)
			os.Exit(0)
		}
		cmd.Help()
	},
}

func init() {
	rootCmd.Flags().BoolVar(&version, "version", false, "print the castore version")
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(addPathCmd)
	rootCmd.AddCommand(gcLockCmd)
	gcLockCmd.AddCommand(gcLockStatusCmd)
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore loads the ambient config and opens the local store backend.
func openStore(cmd *cobra.Command) (*localstore.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return localstore.Open(cmd.Context(), cfg.StoreDir, cfg.StateDir)
}

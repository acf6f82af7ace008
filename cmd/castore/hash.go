package main

import (
	"fmt"
	"io"
	"os"

	"github.com/javanhut/castore/internal/xhash"
	"github.com/spf13/cobra"
)

var hashAlgo string
var hashEncoding string

var hashCmd = &cobra.Command{
	Use:   "hash <file>",
	Short: "Compute a hash of a file's contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		algo, err := xhash.ParseType(hashAlgo)
		if err != nil {
			return err
		}
		enc, err := parseEncoding(hashEncoding)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("hash: %w", err)
		}
		defer f.Close()

		ctx := xhash.New(algo)
		if _, err := io.Copy(ctx, f); err != nil {
			return fmt.Errorf("hash: %w", err)
		}
		h, _ := ctx.Finish()
		fmt.Println(xhash.EncodeWithType(h, enc))
		return nil
	},
}

func init() {
	hashCmd.Flags().StringVar(&hashAlgo, "type", "sha256", "hash algorithm: md5, sha1, sha256, sha512")
	hashCmd.Flags().StringVar(&hashEncoding, "encoding", "base32", "output encoding: base16, base32, base64, sri")
}

func parseEncoding(s string) (xhash.Encoding, error) {
	switch s {
	case "base16":
		return xhash.Base16, nil
	case "base32":
		return xhash.Base32, nil
	case "base64":
		return xhash.Base64, nil
	case "sri":
		return xhash.SRI, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q", s)
	}
}

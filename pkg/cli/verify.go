package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlite-burrito/burrito/pkg/archive"
)

func (c *CLI) newVerifyCmd() *cobra.Command {
	var keyFile, signature string
	var list bool

	cmd := &cobra.Command{
		Use:   "verify <archive>",
		Short: "Check the detached signature of a package archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.resolvePath(args[0])
			sig := signature
			if sig == "" {
				sig = path + archive.SignatureExt
			} else {
				sig = c.resolvePath(sig)
			}

			fingerprint, err := archive.Verify(path, sig, c.resolvePath(keyFile))
			if err != nil {
				return err
			}
			c.printSuccess(fmt.Sprintf("Good signature from %s", fingerprint))

			if list {
				names, err := archive.List(path)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(c.output, n)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyFile, "key", "k", "", "armored OpenPGP public key")
	cmd.Flags().StringVar(&signature, "signature", "", "signature file (default: <archive>.asc)")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list the archive contents after verifying")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

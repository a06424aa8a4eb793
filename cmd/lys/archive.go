package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// uvd command
var uvdCmd = &cobra.Command{
	Use:   "uvd",
	Short: "Build, verify, and distribute signed package archives",
}

var uvdCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Build a .uvd archive from the uvd/ staging directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("uvd-create")
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.CreateArchive()
		if err != nil {
			return err
		}

		fmt.Printf("Created %s\n", path)
		return nil
	},
}

var uvdVerifyCmd = &cobra.Command{
	Use:   "verify FILE",
	Short: "Verify an archive's content hash and signature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("uvd-verify")
		if err != nil {
			return err
		}
		defer a.Close()

		meta, err := a.VerifyArchive(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("OK %s\n", args[0])
		fmt.Printf("Content hash: %s\n", meta.ContentHash)
		fmt.Printf("Signed at:    %s\n", time.Unix(int64(meta.Timestamp), 0).UTC().Format(time.RFC3339))
		return nil
	},
}

var uvdExtractCmd = &cobra.Command{
	Use:   "extract FILE",
	Short: "Verify an archive and unpack it next to itself",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("uvd-extract")
		if err != nil {
			return err
		}
		defer a.Close()

		dir, err := a.ExtractArchive(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Extracted to %s\n", dir)
		return nil
	},
}

var uvdPublishCmd = &cobra.Command{
	Use:   "publish FILE",
	Short: "Verify an archive and upload it to a shelf",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shelfName, _ := cmd.Flags().GetString("shelf")

		a, err := newApp("uvd-publish")
		if err != nil {
			return err
		}
		defer a.Close()

		key, err := a.PublishArchive(cmd.Context(), shelfName, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Published as %s\n", key)
		return nil
	},
}

var uvdFetchCmd = &cobra.Command{
	Use:   "fetch PACKAGE [DEST]",
	Short: "Download the latest archive of a package from a shelf",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		shelfName, _ := cmd.Flags().GetString("shelf")

		a, err := newApp("uvd-fetch")
		if err != nil {
			return err
		}
		defer a.Close()

		dest := ""
		if len(args) > 1 {
			dest = args[1]
		}

		path, err := a.FetchArchive(cmd.Context(), shelfName, args[0], dest)
		if err != nil {
			return err
		}

		fmt.Printf("Fetched %s\n", path)
		return nil
	},
}

// identity command
var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage the signing identity",
}

var identityExportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Export the keypair encrypted with a passphrase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("identity-export")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		f, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("creating %s: %w", args[0], err)
		}
		defer f.Close()

		if err := a.ExportIdentity(f, pass); err != nil {
			return err
		}

		fmt.Printf("Identity exported to %s\n", args[0])
		return nil
	},
}

var identityImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a previously exported keypair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("identity-import")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		if err := a.ImportIdentity(f, pass); err != nil {
			return err
		}

		fmt.Println("Identity imported; future commits will be signed with it.")
		return nil
	},
}

// readPassphrase prompts on stderr and reads without echo when stdin is a
// terminal; otherwise it reads one line from stdin.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	rootCmd.AddCommand(uvdCmd)
	uvdCmd.AddCommand(uvdCreateCmd)
	uvdCmd.AddCommand(uvdVerifyCmd)
	uvdCmd.AddCommand(uvdExtractCmd)

	uvdCmd.AddCommand(uvdPublishCmd)
	uvdPublishCmd.Flags().String("shelf", "", "Shelf name (default: first configured)")

	uvdCmd.AddCommand(uvdFetchCmd)
	uvdFetchCmd.Flags().String("shelf", "", "Shelf name (default: first configured)")

	rootCmd.AddCommand(identityCmd)
	identityCmd.AddCommand(identityExportCmd)
	identityCmd.AddCommand(identityImportCmd)
}

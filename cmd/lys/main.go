package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hackia/lys-sub000/internal/app"
	"github.com/hackia/lys-sub000/internal/config"
	"github.com/hackia/lys-sub000/internal/engine"
	"github.com/hackia/lys-sub000/internal/gitimport"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp opens the repository containing the working directory. The caller
// must defer a.Close(). operation identifies the CLI command being run
// (e.g. "commit", "checkout").
func newApp(operation string) (*app.App, error) {
	return app.New("", operation)
}

// shortHash abbreviates a full hex hash for display.
func shortHash(h string) string {
	if len(h) < 12 {
		return h
	}
	return h[:12]
}

// newTable returns a list table in the house style.
func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

// pageOutput pipes text through $PAGER when stdout is a terminal, and
// prints it directly otherwise.
func pageOutput(text string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Print(text)
		return nil
	}

	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less -F -X -R"
	}
	parts := strings.Fields(pager)
	c := exec.Command(parts[0], parts[1:]...)
	c.Stdin = strings.NewReader(text)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		fmt.Print(text)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:          "lys",
	Short:        "Local-first version control with signed, content-addressed history",
	SilenceUsage: true,
}

// init command
var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Create a new repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		root, err := app.Init(dir)
		if err != nil {
			return err
		}

		fmt.Printf("Initialized empty repository in %s\n", root)
		fmt.Println("Signing identity generated; commits will be signed.")
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show working tree changes against the head commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("status")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}

		branch, err := a.CurrentBranch()
		if err != nil {
			return err
		}
		fmt.Printf("On branch %s\n", branch)

		if len(entries) == 0 {
			fmt.Println("Working tree clean.")
			return nil
		}
		fmt.Println()
		for _, e := range entries {
			fmt.Printf("  %-10s %s\n", string(e.Kind)+":", e.Path)
		}
		return nil
	},
}

// diff command
var diffCmd = &cobra.Command{
	Use:   "diff [PATH]",
	Short: "Show line changes against the head commit",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("diff")
		if err != nil {
			return err
		}
		defer a.Close()

		diffs, err := a.Diff(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) == 1 {
			filtered := diffs[:0]
			for _, d := range diffs {
				if d.Path == args[0] {
					filtered = append(filtered, d)
				}
			}
			diffs = filtered
		}
		if len(diffs) == 0 {
			fmt.Println("No changes.")
			return nil
		}

		var b strings.Builder
		for _, d := range diffs {
			b.WriteString(d.Text)
			if d.Binary {
				b.WriteString("\n")
			}
		}
		return pageOutput(b.String())
	},
}

// commit command
var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Record the working tree as a new commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		author, _ := cmd.Flags().GetString("author")

		a, err := newApp("commit")
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.Commit(cmd.Context(), author, message)
		if err != nil {
			return err
		}

		subject := strings.SplitN(message, "\n", 2)[0]
		fmt.Printf("[%s %s] %s\n", summary.Branch, shortHash(summary.Hash), subject)
		fmt.Printf("%d file(s) recorded, %d new blob(s)\n", summary.Files, summary.NewBlobs)
		if !summary.Signed {
			fmt.Println("note: commit is unsigned (no signing identity loaded)")
		}
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show commit history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		page, _ := cmd.Flags().GetInt("page")
		branch, _ := cmd.Flags().GetString("branch")
		if page < 1 {
			page = 1
		}

		a, err := newApp("log")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Log(engine.LogQuery{
			Branch: branch,
			Limit:  limit,
			Offset: (page - 1) * limit,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No commits.")
			return nil
		}
		return pageOutput(renderLog(entries))
	},
}

func renderLog(entries []engine.LogEntry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}

		c := e.Commit
		marker := ""
		if c.Signed() {
			marker = " (signed)"
		}
		fmt.Fprintf(&b, "commit %s%s\n", c.Hash, marker)
		fmt.Fprintf(&b, "Author: %s\n", c.Author)
		fmt.Fprintf(&b, "Date:   %s\n\n", c.Timestamp)
		for _, line := range strings.Split(c.Message, "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}

		if e.TotalFiles > 0 {
			b.WriteString("\n")
			for _, f := range e.Files {
				fmt.Fprintf(&b, "    %s\n", f)
			}
			if rest := e.TotalFiles - len(e.Files); rest > 0 {
				fmt.Fprintf(&b, "    ... and %d more\n", rest)
			}
		}
	}
	return b.String()
}

// checkout command
var checkoutCmd = &cobra.Command{
	Use:   "checkout REF",
	Short: "Switch the working tree to a branch or commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("checkout")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.Checkout(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if s.Detached {
			fmt.Printf("HEAD is now at %s (detached)\n", shortHash(s.Hash))
		} else {
			fmt.Printf("Switched to branch %s at %s\n", s.Branch, shortHash(s.Hash))
		}
		fmt.Printf("%d file(s) written, %d removed\n", s.Written, s.Removed)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore PATH",
	Short: "Rewrite one file from the head commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("restore")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Restore(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Printf("Restored %s\n", args[0])
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the repository operation log",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		t := newTable()
		t.AppendHeader(table.Row{"#", "Operation", "Timestamp", "View"})
		for _, op := range ops {
			t.AppendRow(table.Row{op.ID, op.Type, op.Timestamp, op.ViewState})
		}
		t.Render()
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import SOURCE",
	Short: "Replay a Git repository's history into this one",
	Long: `Import reads a local Git repository (or clones a remote URL) and replays
its commits, oldest first, onto a branch of this repository. Blobs are
deduplicated on the way in and every imported commit is re-signed with
the local identity.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		depth, _ := cmd.Flags().GetInt("depth")
		branch, _ := cmd.Flags().GetString("branch")

		a, err := newApp("import")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Import(cmd.Context(), gitimport.Options{
			Source: args[0],
			Depth:  depth,
			Branch: branch,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d commit(s), %d new blob(s)\n", res.Commits, res.NewBlobs)
		fmt.Printf("Head is now %s\n", shortHash(res.HeadHash))
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg := config.NewConfig("", defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Set author = \"Name <email>\" to record commits under your name.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Author:   %s\n", cfg.Author)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		for _, s := range cfg.Shelves {
			fmt.Printf("Shelf:    %s (%s)\n", s.Name, s.Type)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(diffCmd)

	rootCmd.AddCommand(commitCmd)
	commitCmd.Flags().StringP("message", "m", "", "Commit message")
	commitCmd.Flags().StringP("author", "a", "", "Author, e.g. \"Name <email>\" (default: configured author)")
	_ = commitCmd.MarkFlagRequired("message")

	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntP("limit", "n", 20, "Commits per page")
	logCmd.Flags().Int("page", 1, "Page number")
	logCmd.Flags().String("branch", "", "Only commits reachable from this branch")

	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(restoreCmd)

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of operations to show")

	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Int("depth", 0, "Import only the most recent N commits")
	importCmd.Flags().String("branch", "", "Target branch (default: main)")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
}

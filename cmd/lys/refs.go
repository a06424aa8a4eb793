package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// branch command
var branchCmd = &cobra.Command{
	Use:   "branch [NAME]",
	Short: "List branches or create a new one at the current head",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("branch")
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			if err := a.CreateBranch(args[0]); err != nil {
				return err
			}
			fmt.Printf("Created branch %s\n", args[0])
			return nil
		}

		branches, err := a.Branches()
		if err != nil {
			return err
		}
		current, err := a.CurrentBranch()
		if err != nil {
			return err
		}

		for _, b := range branches {
			marker := "  "
			if b.Name == current {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, b.Name)
		}
		return nil
	},
}

// tag command
var tagCmd = &cobra.Command{
	Use:   "tag NAME",
	Short: "Create an immutable tag at the current head",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("message")

		a, err := newApp("tag")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CreateTag(args[0], description); err != nil {
			return err
		}

		fmt.Printf("Created tag %s\n", args[0])
		return nil
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("tag-list")
		if err != nil {
			return err
		}
		defer a.Close()

		tags, err := a.Tags()
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			fmt.Println("No tags.")
			return nil
		}

		t := newTable()
		t.AppendHeader(table.Row{"Name", "Commit", "Created", "Description"})
		for _, tag := range tags {
			t.AppendRow(table.Row{tag.Name, shortHash(tag.CommitHash), tag.CreatedAt, tag.Description})
		}
		t.Render()
		return nil
	},
}

// feature command
var featureCmd = &cobra.Command{
	Use:   "feature",
	Short: "Manage feature branches",
}

var featureStartCmd = &cobra.Command{
	Use:   "start NAME",
	Short: "Create feature/NAME at the current head and check it out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("feature-start")
		if err != nil {
			return err
		}
		defer a.Close()

		branch, err := a.StartFeature(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Switched to new branch %s\n", branch)
		return nil
	},
}

var featureFinishCmd = &cobra.Command{
	Use:   "finish NAME",
	Short: "Fast-forward main to feature/NAME and delete the branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("feature-finish")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.FinishFeature(args[0]); err != nil {
			return err
		}

		fmt.Printf("Merged feature/%s into main and deleted the branch\n", args[0])
		return nil
	},
}

// hotfix command
var hotfixCmd = &cobra.Command{
	Use:   "hotfix",
	Short: "Manage hotfix branches",
}

var hotfixStartCmd = &cobra.Command{
	Use:   "start NAME",
	Short: "Create hotfix/NAME from main and check it out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("hotfix-start")
		if err != nil {
			return err
		}
		defer a.Close()

		branch, err := a.StartHotfix(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Switched to new branch %s\n", branch)
		return nil
	},
}

var hotfixFinishCmd = &cobra.Command{
	Use:   "finish NAME",
	Short: "Fast-forward main to hotfix/NAME and delete the branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("hotfix-finish")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.FinishHotfix(args[0]); err != nil {
			return err
		}

		fmt.Printf("Merged hotfix/%s into main and deleted the branch\n", args[0])
		return nil
	},
}

// audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Re-derive and verify the signature of every commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("audit")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Audit(cmd.Context())
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Check", "Count"})
		t.AppendRow(table.Row{"commits", report.Total})
		t.AppendRow(table.Row{"valid signatures", report.Valid})
		t.AppendRow(table.Row{"unsigned", report.Unsigned})
		t.AppendRow(table.Row{"corrupted", len(report.Corrupted)})
		t.Render()

		if len(report.Corrupted) > 0 {
			for _, h := range report.Corrupted {
				fmt.Printf("corrupted: %s\n", h)
			}
			return fmt.Errorf("audit found %d corrupted commit(s)", len(report.Corrupted))
		}
		return nil
	},
}

// verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every referenced blob exists in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		deep, _ := cmd.Flags().GetBool("deep")

		a, err := newApp("verify")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Verify(cmd.Context(), deep)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Check", "Count"})
		t.AppendRow(table.Row{"blobs checked", report.Checked})
		t.AppendRow(table.Row{"missing", report.Missing})
		t.AppendRow(table.Row{"corrupted", report.Corrupted})
		t.Render()

		if report.Missing+report.Corrupted > 0 {
			return fmt.Errorf("store verification failed: %d missing, %d corrupted", report.Missing, report.Corrupted)
		}
		fmt.Println("Object store OK.")
		return nil
	},
}

// prune command
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired commits and unreferenced data",
	RunE: func(cmd *cobra.Command, args []string) error {
		orphans, _ := cmd.Flags().GetBool("orphans")

		a, err := newApp("prune")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Prune(cmd.Context(), orphans)
		if err != nil {
			return err
		}

		fmt.Printf("Pruned %d commit(s), %d tree node(s), %d blob(s)\n",
			report.Commits, report.TreeNodes, report.Blobs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(branchCmd)

	rootCmd.AddCommand(tagCmd)
	tagCmd.Flags().StringP("message", "m", "", "Tag description")
	tagCmd.AddCommand(tagListCmd)

	rootCmd.AddCommand(featureCmd)
	featureCmd.AddCommand(featureStartCmd)
	featureCmd.AddCommand(featureFinishCmd)

	rootCmd.AddCommand(hotfixCmd)
	hotfixCmd.AddCommand(hotfixStartCmd)
	hotfixCmd.AddCommand(hotfixFinishCmd)

	rootCmd.AddCommand(auditCmd)

	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().Bool("deep", false, "Decompress and re-hash every blob against its address")

	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().Bool("orphans", false, "Only remove unreferenced blobs, keep all commits")
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewHelpCmd creates a help command supporting a hidden -t flag to print
// the full command tree, grounded on the teacher's help.go.
func NewHelpCmd(rootCmd *cobra.Command) *cobra.Command {
	var showTree bool

	helpCmd := &cobra.Command{
		Use:     "help [command]",
		Aliases: []string{"h"},
		Short:   "Help about any command",
		Run: func(_ *cobra.Command, args []string) {
			if showTree {
				printCommandTree(rootCmd)
				return
			}
			targetCmd, _, err := rootCmd.Find(args)
			if err != nil || targetCmd == nil {
				targetCmd = rootCmd
			}
			_ = targetCmd.Help()
		},
	}

	helpCmd.Flags().BoolVarP(&showTree, "tree", "t", false, "Show full command tree")
	_ = helpCmd.Flags().MarkHidden("tree")

	return helpCmd
}

func printCommandTree(cmd *cobra.Command) {
	fmt.Println(cmd.Name())
	printChildren(cmd, "")
}

func printChildren(cmd *cobra.Command, indent string) {
	visible := getVisibleCommands(cmd)
	for i, sub := range visible {
		isLast := i == len(visible)-1
		printNode(sub, indent, isLast)
	}
}

func printNode(cmd *cobra.Command, indent string, isLast bool) {
	var branch, childIndent string
	if isLast {
		branch = "└── "
		childIndent = indent + "    "
	} else {
		branch = "├── "
		childIndent = indent + "│   "
	}
	fmt.Printf("%s%s%s", indent, branch, cmd.Name())
	if cmd.Short != "" {
		fmt.Printf(" - %s", cmd.Short)
	}
	fmt.Println()
	printChildren(cmd, childIndent)
}

func getVisibleCommands(cmd *cobra.Command) []*cobra.Command {
	var visible []*cobra.Command
	for _, sub := range cmd.Commands() {
		if !sub.Hidden && sub.Name() != "help" {
			visible = append(visible, sub)
		}
	}
	return visible
}

package main

import (
	"fmt"
	"strings"

	"github.com/fcruxen/pathtree"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// parseSets turns k=v pairs into fields. Values are read as YAML
// scalars, so numbers and booleans keep their type.
func parseSets(pairs []string) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--set %q: want key=value", pair)
		}
		switch k {
		case pathtree.FieldID, pathtree.FieldParent, pathtree.FieldAncestry:
			return nil, fmt.Errorf("--set %q: %s is maintained by pathtree", pair, k)
		}
		var value interface{}
		if err := yaml.Unmarshal([]byte(v), &value); err != nil {
			return nil, fmt.Errorf("--set %q: %w", pair, err)
		}
		fields[k] = value
	}
	return fields, nil
}

func addCmd(a *app) *cobra.Command {
	var (
		parent string
		sets   []string
	)
	cmd := &cobra.Command{
		Use:   "add [id]",
		Short: "Insert a record, generating an id when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseSets(sets)
			if err != nil {
				return err
			}
			n := &pathtree.Node{Parent: parent}
			if len(fields) > 0 {
				n.Fields = fields
			}
			if len(args) == 1 {
				n.ID = args[0]
			}
			if err := a.nodes.Insert(cmd.Context(), n); err != nil {
				return err
			}
			return a.printNodes(cmd, []*pathtree.Node{n})
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "parent id; empty for a root")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field as key=value, repeatable")
	return cmd
}

func mvCmd(a *app) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "mv <id>",
		Short: "Move a record and its subtree under a new parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.nodes.Move(cmd.Context(), args[0], parent)
			if err != nil {
				return err
			}
			return a.printNodes(cmd, []*pathtree.Node{n})
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "new parent id; empty makes the record a root")
	return cmd
}

func rmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a record; its descendants follow the onDelete policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.nodes.Remove(cmd.Context(), args[0])
		},
	}
}

func childrenCmd(a *app) *cobra.Command {
	var (
		recursive bool
		sortBy    string
	)
	cmd := &cobra.Command{
		Use:   "children [id]",
		Short: "List the children of a record, or the roots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options := &pathtree.ChildrenOptions{Recursive: recursive, SortBy: sortBy}
			var (
				found []*pathtree.Node
				err   error
			)
			if len(args) == 0 {
				found, err = a.engine.Roots(cmd.Context(), options)
			} else {
				var n *pathtree.Node
				if n, err = a.nodes.Get(cmd.Context(), args[0]); err != nil {
					return err
				}
				found, err = a.engine.Children(cmd.Context(), n, options)
			}
			if err != nil {
				return err
			}
			if sortBy == "" {
				a.engine.SortByPath(found)
			}
			return a.printNodes(cmd, found)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "list every descendant")
	cmd.Flags().StringVar(&sortBy, "sort", "", "field to sort by; default is tree order")
	return cmd
}

func ancestorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ancestors <id>",
		Short: "List the ancestors of a record, root first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.nodes.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			found, err := a.engine.Ancestors(cmd.Context(), n, nil)
			if err != nil {
				return err
			}
			return a.printNodes(cmd, found)
		},
	}
}

func treeCmd(a *app) *cobra.Command {
	var (
		options pathtree.TreeOptions
		label   string
	)
	cmd := &cobra.Command{
		Use:   "tree [root]",
		Short: "Print the subtree below a record, or the whole forest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var root *pathtree.Node
			if len(args) == 1 {
				var err error
				if root, err = a.nodes.Get(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			if label != "" {
				options.Fields = []string{label}
			}
			forest, err := a.engine.ChildrenTree(cmd.Context(), root, &options)
			if err != nil {
				return err
			}
			return a.printTree(cmd, root, forest, label)
		},
	}
	cmd.Flags().IntVar(&options.MinLevel, "min-level", 0, "level of the top records printed")
	cmd.Flags().BoolVar(&options.DirectOnly, "direct", false, "only print direct children")
	cmd.Flags().BoolVar(&options.OmitEmptyChildren, "omit-empty", false, "leave out empty children lists in JSON")
	cmd.Flags().StringVar(&label, "label", "", "field printed next to each id")
	return cmd
}

func levelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "level <id>",
		Short: "Print how many ancestors a record has",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.nodes.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.json {
				return a.printJSON(cmd, map[string]interface{}{pathtree.FieldID: n.ID, "level": a.engine.Level(n)})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), a.engine.Level(n))
			return err
		},
	}
}

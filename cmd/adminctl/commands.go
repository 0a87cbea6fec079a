package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"campus-admin/internal/auth"
	"campus-admin/internal/diff"
	"campus-admin/internal/entity"
	"campus-admin/internal/parse"
	"campus-admin/internal/relation"
	"campus-admin/internal/screen"
)

func (a *app) listCmd() *cobra.Command {
	var (
		scope   []string
		parents []string
		search  string
		sortBy  string
		fields  []string
		columns []string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List entities with parent names resolved",
		Long: `List the entities of one type.

Parent references are shown as names; a reference that matches nothing shows
"Unknown College" for colleges and "N/A" otherwise. --search matches the name,
the parent names and any --field case-insensitively. --sort takes a
comma-separated key list where a leading '-' sorts descending, for example
"collegeName,-name".`,
		Example: `  adminctl list departments --sort collegeName,name
  adminctl list programs --parent department=D1 --search data
  adminctl list departments --scope college=C1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := entity.ParseType(args[0])
			if err != nil {
				return err
			}
			sc, err := parse.Scope(scope)
			if err != nil {
				return err
			}
			parentScope, err := parse.Scope(parents)
			if err != nil {
				return err
			}
			tag, err := language.Parse(a.locale)
			if err != nil {
				return fmt.Errorf("invalid locale %q: %w", a.locale, err)
			}
			orders, err := parse.Sort(sortBy, tag)
			if err != nil {
				return err
			}

			s, err := a.newScreen("list-" + string(t))
			if err != nil {
				return err
			}
			defer s.Unmount()
			ctx, cancel := a.context(cmd)
			defer cancel()

			// Parent lists only feed name resolution; a failure degrades to
			// sentinels instead of failing the command.
			if err := s.Mount(ctx, parentTypes(t)...); err != nil {
				a.logger.Warn("some parent collections failed to load", zap.Error(err))
			}
			if err := s.Load(ctx, t, sc); err != nil {
				return err
			}

			view := screen.View{Search: search, Fields: fields, Sort: orders}
			if len(parentScope) > 0 {
				view.Parents = make(map[entity.Type]any, len(parentScope))
				for k, v := range parentScope {
					pt, err := entity.ParseType(k)
					if err != nil {
						return err
					}
					view.Parents[pt] = v
				}
			}
			rows := s.Rows(t, view)
			if asJSON {
				return a.printJSON(rowsJSON(rows))
			}
			return a.printTable(t, rows, columns)
		},
	}
	cmd.Flags().StringArrayVar(&scope, "scope", nil, "server-side filter key=value (repeatable)")
	cmd.Flags().StringArrayVar(&parents, "parent", nil, "only children of parent, as type=id (repeatable)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive search term")
	cmd.Flags().StringVar(&sortBy, "sort", "name", "sort keys, '-' prefix for descending")
	cmd.Flags().StringSliceVar(&fields, "field", nil, "extra fields matched by --search")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "extra columns to print, dotted paths allowed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func (a *app) addCmd() *cobra.Command {
	var (
		parent string
		sets   []string
	)
	cmd := &cobra.Command{
		Use:   "add <type>",
		Short: "Create an entity",
		Long: `Create an entity from --set key=value assignments.

Colleges, departments and programs need --parent: the university, college or
department they belong to. Dotted keys build nested objects
("head.name=Ada"); numbers, booleans and JSON arrays are decoded.`,
		Example: `  adminctl add departments --parent C1 --set name="Computer Science" --set head.name=Ada
  adminctl add programs --parent D1 --set name=AI --set duration=2 --set level=postgraduate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := entity.ParseType(args[0])
			if err != nil {
				return err
			}
			payload, err := parse.Assignments(sets)
			if err != nil {
				return err
			}

			s, err := a.newScreen("add-" + string(t))
			if err != nil {
				return err
			}
			defer s.Unmount()
			ctx, cancel := a.context(cmd)
			defer cancel()

			if link, ok := entity.OwningLink(t); ok {
				if err := s.Mount(ctx, link.Parent); err != nil {
					a.logger.Warn("parent collection failed to load", zap.Error(err))
				}
			}
			var parentRef any
			if parent != "" {
				parentRef = parent
			}
			created, err := s.Add(ctx, t, parentRef, payload)
			if err != nil {
				return err
			}
			return a.printJSON(created)
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "id of the owning parent")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field assignment key=value (repeatable)")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "update <type> <id>",
		Short: "Change fields of an entity",
		Long: `Change fields of an entity. Only the fields that differ from the stored
record are sent; when nothing differs no request is made.`,
		Example: `  adminctl update programs P1 --set duration=3
  adminctl update departments D1 --set programs='["P1","P2"]'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := entity.ParseType(args[0])
			if err != nil {
				return err
			}
			changes, err := parse.Assignments(sets)
			if err != nil {
				return err
			}

			s, err := a.newScreen("update-" + string(t))
			if err != nil {
				return err
			}
			defer s.Unmount()
			ctx, cancel := a.context(cmd)
			defer cancel()

			if err := s.Mount(ctx, append(parentTypes(t), t)...); err != nil {
				if !s.Loaded(t) {
					return err
				}
				a.logger.Warn("some parent collections failed to load", zap.Error(err))
			}
			original, ok := relation.Find(s.Collection(t), args[1])
			if !ok {
				return fmt.Errorf("%s %s not found", t.Label(), args[1])
			}

			edited := original.Clone()
			merge(edited, changes)
			saved, err := s.Save(ctx, t, original, edited)
			if errors.Is(err, diff.ErrNoChanges) {
				fmt.Fprintln(a.out, err.Error())
				return nil
			}
			if err != nil {
				return err
			}
			return a.printJSON(saved)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field assignment key=value (repeatable)")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := entity.ParseType(args[0])
			if err != nil {
				return err
			}
			s, err := a.newScreen("delete-" + string(t))
			if err != nil {
				return err
			}
			defer s.Unmount()
			ctx, cancel := a.context(cmd)
			defer cancel()

			if t == entity.Program {
				// Loaded so the program also leaves its department's set.
				if err := s.Mount(ctx, entity.Program, entity.Department); err != nil {
					a.logger.Warn("collections failed to load", zap.Error(err))
				}
			}
			if err := s.Delete(ctx, t, args[1], yes); err != nil {
				if errors.Is(err, screen.ErrNotConfirmed) {
					return fmt.Errorf("refusing to delete %s %s without --yes", strings.ToLower(t.Label()), args[1])
				}
				return err
			}
			fmt.Fprintf(a.out, "deleted %s %s\n", strings.ToLower(t.Label()), args[1])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	var subject, name string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token with the locally configured JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := auth.NewManager(a.cfg.Auth)
			if err != nil {
				return err
			}
			token, exp, err := mgr.Issue(subject, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().StringVar(&name, "name", "", "display name carried in the token")
	return cmd
}

// parentTypes lists the distinct parent collections referenced by t.
func parentTypes(t entity.Type) []entity.Type {
	var out []entity.Type
	seen := make(map[entity.Type]bool)
	for _, link := range entity.Links(t) {
		if !seen[link.Parent] {
			seen[link.Parent] = true
			out = append(out, link.Parent)
		}
	}
	return out
}

// merge overlays changes onto doc, descending into nested objects so that
// "head.name" leaves "head.phone" alone.
func merge(doc map[string]any, changes map[string]any) {
	for k, v := range changes {
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := doc[k].(map[string]any); ok {
				merge(cur, sub)
				continue
			}
		}
		doc[k] = v
	}
}

func rowsJSON(rows []screen.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		m := r.Doc.Clone()
		for k, v := range r.Names {
			m[k] = v
		}
		out[i] = m
	}
	return out
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printTable(t entity.Type, rows []screen.Row, columns []string) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	header := []string{"ID", "NAME"}
	links := entity.Links(t)
	for _, link := range links {
		header = append(header, strings.ToUpper(link.Parent.Label()))
	}
	for _, c := range columns {
		header = append(header, strings.ToUpper(c))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, r := range rows {
		cells := []string{r.ID(), r.Doc.Name()}
		for _, link := range links {
			cells = append(cells, r.Names[screen.NameKey(link.Parent)])
		}
		for _, c := range columns {
			v, _ := r.Doc.Lookup(c)
			cells = append(cells, cell(v))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64, bool:
		return fmt.Sprint(x)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

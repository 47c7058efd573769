package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sqlite-burrito/burrito/pkg/analyzers"
	"github.com/sqlite-burrito/burrito/pkg/recipe"
	"github.com/sqlite-burrito/burrito/pkg/types"
)

func (c *CLI) newInspectCmd() *cobra.Command {
	var showTargets bool

	cmd := &cobra.Command{
		Use:   "inspect [recipe]",
		Short: "Show the recipe, its options and the consumer metadata it declares",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return c.runInspect(path, showTargets)
		},
	}

	cmd.Flags().BoolVar(&showTargets, "targets", true, "list the CMake targets of the source tree")

	return cmd
}

func (c *CLI) runInspect(path string, showTargets bool) error {
	r, err := recipe.Load(c.recipePath(path))
	if err != nil {
		return err
	}
	src := c.settings().SourceDir

	version := r.Metadata.Version
	if version == "" {
		if err := r.ResolveVersion(src); err != nil {
			if !errors.Is(err, recipe.ErrVersionNotFound) {
				return err
			}
			c.printWarning(err.Error())
		}
		version = r.Metadata.Version
	}

	meta := newTableWriter()
	meta.SetTitle("Package")
	meta.AppendRows([]table.Row{
		{"Name", r.Metadata.Name},
		{"Version", orDash(version)},
		{"Description", orDash(r.Metadata.Description)},
		{"License", orDash(r.Metadata.License)},
		{"Homepage", orDash(r.Metadata.Homepage)},
		{"Min cppstd", r.MinCppStd},
	})
	fmt.Fprintln(c.output, meta.Render())

	opts := r.Options()
	ot := newTableWriter()
	ot.SetTitle("Options")
	ot.AppendHeader(table.Row{"Option", "Default", "Allowed"})
	for _, name := range opts.Names() {
		value, _ := opts.Get(name)
		decl, _ := opts.Decl(name)
		ot.AppendRow(table.Row{name, value, strings.Join(decl.Allowed, ", ")})
	}
	fmt.Fprintln(c.output, ot.Render())

	rt := newTableWriter()
	rt.SetTitle("Requirements")
	rt.AppendHeader(table.Row{"Reference", "Scope", "Transitive headers", "Transitive libs"})
	for _, req := range r.Requires {
		rt.AppendRow(table.Row{req.Ref, "runtime", req.TransitiveHeaders, req.TransitiveLibs})
	}
	for _, req := range r.TestRequires {
		rt.AppendRow(table.Row{req.Ref, "test", false, false})
	}
	fmt.Fprintln(c.output, rt.Render())

	info := r.PackageInfo()
	it := newTableWriter()
	it.SetTitle("Consumer metadata")
	it.AppendRow(table.Row{"Libs", strings.Join(info.Libs, ", ")})
	for _, key := range []string{types.PropertyCMakeFileName, types.PropertyCMakeTargetName} {
		it.AppendRow(table.Row{key, orDash(info.Properties[key])})
	}
	it.AppendRow(table.Row{"Requires", strings.Join(info.Requires, ", ")})
	fmt.Fprintln(c.output, it.Render())

	if !showTargets {
		return nil
	}

	project, err := analyzers.NewCMakeAnalyzer(src).AnalyzeProject(analyzers.DefaultAnalysisOptions())
	if err != nil {
		c.printWarning(fmt.Sprintf("CMake project not analyzed: %v", err))
		return nil
	}
	tt := newTableWriter()
	tt.SetTitle(fmt.Sprintf("CMake project %s", orDash(project.Name)))
	tt.AppendHeader(table.Row{"Target", "Type", "Directory"})
	for _, target := range project.Targets {
		tt.AppendRow(table.Row{target.Name, target.Type, orDash(target.Directory)})
	}
	fmt.Fprintln(c.output, tt.Render())
	return nil
}

package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sqlite-burrito/burrito/pkg/registry"
	"github.com/sqlite-burrito/burrito/pkg/types"
)

func (c *CLI) newPackagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packages",
		Short: "List packages published to the local registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPackagesList(cmd.Context())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name/version>",
		Short: "Show the consumer metadata of one package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPackagesShow(cmd.Context(), args[0])
		},
	})

	return cmd
}

func (c *CLI) openRegistry(ctx context.Context) (*registry.Registry, error) {
	return registry.Open(ctx, c.settings().RegistryPath)
}

func (c *CLI) runPackagesList(ctx context.Context) error {
	reg, err := c.openRegistry(ctx)
	if err != nil {
		return err
	}
	defer reg.Close()

	pkgs, err := reg.List(ctx)
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		c.printInfo(fmt.Sprintf("No packages in %s", reg.Path()))
		return nil
	}

	tw := newTableWriter()
	tw.AppendHeader(table.Row{"Package", "Revision", "Libs", "Requires", "Published"})
	for _, p := range pkgs {
		tw.AppendRow(table.Row{
			p.Reference(),
			shortRevision(p.Revision),
			strings.Join(p.CppInfo.Libs, ", "),
			strings.Join(p.CppInfo.Requires, ", "),
			p.PublishedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	tw.AppendFooter(table.Row{"Total", len(pkgs), "", "", ""})
	fmt.Fprintln(c.output, tw.Render())
	return nil
}

func (c *CLI) runPackagesShow(ctx context.Context, ref string) error {
	req, err := types.ParseRequirement(ref, false, false)
	if err != nil {
		return err
	}

	reg, err := c.openRegistry(ctx)
	if err != nil {
		return err
	}
	defer reg.Close()

	p, err := reg.Get(ctx, req.Name(), req.Version())
	if err != nil {
		return err
	}

	tw := newTableWriter()
	tw.SetTitle(p.Reference())
	tw.AppendRows([]table.Row{
		{"Revision", p.Revision},
		{"Description", orDash(p.Description)},
		{"License", orDash(p.License)},
		{"Homepage", orDash(p.Homepage)},
		{"Topics", orDash(strings.Join(p.Topics, ", "))},
		{"Published", p.PublishedAt.Local().Format("2006-01-02 15:04:05")},
	})
	tw.AppendSeparator()

	names := make([]string, 0, len(p.Options))
	for name := range p.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tw.AppendRow(table.Row{"option " + name, p.Options[name]})
	}
	tw.AppendSeparator()

	tw.AppendRow(table.Row{"libs", strings.Join(p.CppInfo.Libs, ", ")})
	for _, key := range p.PropertyKeys() {
		tw.AppendRow(table.Row{key, p.CppInfo.Properties[key]})
	}
	tw.AppendRow(table.Row{"requires", strings.Join(p.CppInfo.Requires, ", ")})

	fmt.Fprintln(c.output, tw.Render())
	return nil
}

func shortRevision(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

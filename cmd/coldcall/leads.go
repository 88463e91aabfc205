package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ent0n29/coldcall/internal/leads"
)

type leadsOptions struct {
	industry   string
	difficulty string
	asJSON     bool
}

func newLeadsCmd() *cobra.Command {
	opts := leadsOptions{}
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List the generated lead catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printLeads(cmd.OutOrStdout(), leads.NewCatalog(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.industry, "industry", "", "only leads in this industry")
	cmd.Flags().StringVar(&opts.difficulty, "difficulty", "", "only leads of this difficulty (Easy, Medium, Hard)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printLeads(out io.Writer, catalog *leads.Catalog, opts leadsOptions) error {
	var (
		ind  leads.Industry
		diff leads.Difficulty
		err  error
	)
	if v := strings.TrimSpace(opts.industry); v != "" {
		if ind, err = leads.ParseIndustry(v); err != nil {
			return err
		}
	}
	if v := strings.TrimSpace(opts.difficulty); v != "" {
		if diff, err = leads.ParseDifficulty(v); err != nil {
			return err
		}
	}
	found := catalog.Filter(ind, diff)

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tINDUSTRY\tDIFFICULTY\tPERSONA")
	for _, l := range found {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.ID, l.Name, l.Industry, l.Difficulty, l.Persona)
	}
	return tw.Flush()
}

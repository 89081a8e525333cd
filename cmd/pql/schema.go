package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newSchemaCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "List the tables and columns of the data model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.session()
			if err != nil {
				return err
			}
			defer s.Close()
			tables, err := s.Tables(cmd.Context(), "", "")
			if err != nil {
				return err
			}
			var rows [][]string
			for _, t := range tables {
				for _, c := range t.Columns {
					rows = append(rows, []string{t.Name, t.Alias, c.Name, c.Type.String()})
				}
			}
			header := []string{"TABLE", "ALIAS", "COLUMN", "TYPE"}
			switch g.output {
			case outputJSON:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tables)
			case outputCSV:
				return writeCSV(cmd.OutOrStdout(), header, rows)
			default:
				return printTable(cmd.OutOrStdout(), header, rows)
			}
		},
	}
}

func newModelsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the data models of the pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.session()
			if err != nil {
				return err
			}
			defer s.Close()
			models, err := s.DataModels(cmd.Context(), "")
			if err != nil {
				return err
			}
			header := []string{"ID", "NAME", "DESCRIPTION"}
			rows := make([][]string, len(models))
			for i, m := range models {
				rows[i] = []string{m.ID, m.Name, m.Description}
			}
			switch g.output {
			case outputJSON:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(models)
			case outputCSV:
				return writeCSV(cmd.OutOrStdout(), header, rows)
			default:
				return printTable(cmd.OutOrStdout(), header, rows)
			}
		},
	}
}

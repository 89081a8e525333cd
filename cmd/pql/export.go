package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pqlclient/gopql/export"
)

func newExportCmd(g *globalOptions) *cobra.Command {
	opts := &queryOptions{}
	var (
		to        string
		format    string
		prefix    string
		chunkSize int
	)
	cmd := &cobra.Command{
		Use:   "export SELECT_LIST --to DESTINATION",
		Short: "Run a query and save the result chunk by chunk",
		Long: `Run a query and write one file per result chunk, named PREFIX_N.FORMAT.

DESTINATION is a directory, file:///dir, s3://bucket/prefix,
azblob://account/container/prefix or gs://bucket/prefix. Cloud credentials
are taken from the usual AWS_*, AZURE_STORAGE_* and GOOGLE_APPLICATION_CREDENTIALS
environment variables.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd.Context(), opts.timeout)
			defer cancel()
			sink, err := export.ParseDestination(ctx, to)
			if err != nil {
				return err
			}
			s, err := g.session()
			if err != nil {
				return err
			}
			defer s.Close()
			q, err := opts.prepare(ctx, s, args[0])
			if err != nil {
				return err
			}
			var it export.ResultIterator
			if chunkSize > 0 {
				if it, err = s.IterChunks(ctx, q, chunkSize); err != nil {
					return err
				}
			} else {
				it = s.Stream(ctx, q)
			}
			res, err := export.Export(ctx, it, sink, prefix, f)
			if res != nil {
				for _, obj := range res.Objects {
					fmt.Fprintln(cmd.OutOrStdout(), obj)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "(%d rows in %d files)\n", res.Rows, len(res.Objects))
			return nil
		},
	}
	opts.register(cmd.Flags())
	cmd.Flags().StringVar(&to, "to", "", "destination directory or URL")
	cmd.Flags().StringVar(&format, "format", string(export.FormatParquet), "parquet or csv")
	cmd.Flags().StringVar(&prefix, "prefix", "chunk", "file name prefix")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "rows per file; 0 keeps the chunks EMS exported")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	pql "github.com/pqlclient/gopql"
)

// queryOptions are the clause flags shared by query and export.
type queryOptions struct {
	filters  []string
	groupBy  []string
	having   []string
	orderBy  []string
	limit    int
	offset   int
	distinct bool
	validate bool
	timeout  time.Duration
}

func (o *queryOptions) register(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&o.filters, "filter", "f", nil, "FILTER predicate, repeatable; predicates are ANDed")
	fs.StringArrayVarP(&o.groupBy, "group-by", "g", nil, "GROUP BY column, repeatable")
	fs.StringArrayVar(&o.having, "having", nil, "HAVING predicate, repeatable")
	fs.StringArrayVar(&o.orderBy, "order-by", nil, "ORDER BY column, suffix :desc for descending, repeatable")
	fs.BoolVar(&o.distinct, "distinct", false, "drop duplicate rows")
	fs.IntVarP(&o.limit, "limit", "n", -1, "maximum number of rows")
	fs.IntVar(&o.offset, "offset", 0, "rows to skip")
	fs.BoolVar(&o.validate, "validate", false, "check column references against the data model tables before sending")
	fs.DurationVar(&o.timeout, "timeout", 0, "overall deadline, e.g. 2m")
}

// build assembles the query from the select list and the clause flags.
func (o *queryOptions) build(selectList string) pql.Query {
	q := pql.NewQuery(selectList)
	if o.distinct {
		q = q.Distinct()
	}
	for _, f := range o.filters {
		q = q.Filter(f)
	}
	if len(o.groupBy) > 0 {
		q = q.GroupBy(o.groupBy...)
	}
	for _, h := range o.having {
		q = q.Having(h)
	}
	for _, ob := range o.orderBy {
		column, ascending := parseOrderBy(ob)
		q = q.OrderBy(column, ascending)
	}
	if o.limit >= 0 {
		q = q.Limit(o.limit)
	}
	if o.offset != 0 {
		q = q.Offset(o.offset)
	}
	return q
}

func parseOrderBy(s string) (string, bool) {
	if i := strings.LastIndex(s, ":"); i > 0 {
		switch strings.ToLower(s[i+1:]) {
		case "desc":
			return s[:i], false
		case "asc":
			return s[:i], true
		}
	}
	return s, true
}

// prepare builds the query and, with --validate, checks its columns against
// the data model tables.
func (o *queryOptions) prepare(ctx context.Context, s *pql.Session, selectList string) (pql.Query, error) {
	q := o.build(selectList)
	if o.validate {
		schema, err := s.Schema(ctx, "", "")
		if err != nil {
			return q, err
		}
		q = q.WithSchema(schema)
	}
	return q, q.Err()
}

func commandContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func newQueryCmd(g *globalOptions) *cobra.Command {
	opts := &queryOptions{}
	var showQuery bool
	cmd := &cobra.Command{
		Use:   "query SELECT_LIST",
		Short: "Run a query and print the result",
		Example: `  pql query '"ACTIVITIES"."CASE_ID", "ACTIVITIES"."ACTIVITY_EN"' \
      --filter '"ACTIVITIES"."ACTIVITY_EN" = '\''Create Order'\''' --limit 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd.Context(), opts.timeout)
			defer cancel()
			if showQuery {
				compiled, err := opts.build(args[0]).Compile()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), compiled.Text())
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
			rs, err := s.Execute(ctx, q)
			if err != nil {
				return err
			}
			if err = printResultSet(cmd.OutOrStdout(), g.output, rs); err != nil {
				return err
			}
			if g.output == outputTable {
				fmt.Fprintf(cmd.ErrOrStderr(), "(%d rows)\n", rs.Len())
			}
			return nil
		},
	}
	opts.register(cmd.Flags())
	cmd.Flags().BoolVar(&showQuery, "dry-run", false, "print the compiled query instead of running it")
	return cmd
}

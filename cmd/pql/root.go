package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	pql "github.com/pqlclient/gopql"
)

// globalOptions are the persistent flags shared by all commands.
type globalOptions struct {
	connection  string
	url         string
	token       string
	keyType     string
	poolID      string
	dataModelID string
	output      string
	logLevel    string
}

func (o *globalOptions) register(fs *pflag.FlagSet) {
	fs.StringVarP(&o.connection, "connection", "c", "", "connection name in connections.toml (default $EMS_DEFAULT_CONNECTION_NAME or \"default\")")
	fs.StringVar(&o.url, "url", "", "team URL, overrides the connection")
	fs.StringVar(&o.token, "token", "", "API token, overrides the connection")
	fs.StringVar(&o.keyType, "key-type", "", "BEARER or APP_KEY")
	fs.StringVar(&o.poolID, "pool", "", "data pool id")
	fs.StringVarP(&o.dataModelID, "data-model", "d", "", "data model id")
	fs.StringVarP(&o.output, "output", "o", "table", "output format: table, json or csv")
	fs.StringVar(&o.logLevel, "log-level", "", "driver log level, e.g. debug")
}

// config resolves the connection: connection file, then environment, then flags.
func (o *globalOptions) config() (*pql.Config, error) {
	var cfg *pql.Config
	var err error
	if o.connection != "" {
		cfg, err = pql.LoadNamedConnectionConfig(o.connection)
	} else {
		cfg, err = pql.LoadConnectionConfig()
	}
	if err != nil {
		var qe *pql.QueryError
		if o.connection != "" || !errors.As(err, &qe) || qe.Number != pql.ErrCodeNoConnectionFile {
			return nil, err
		}
		// no connection file at all: fall back to the environment
		if cfg, err = pql.ConfigFromEnv(); err != nil {
			return nil, err
		}
	}
	if o.url != "" {
		cfg.BaseURL = o.url
	}
	if o.token != "" {
		cfg.APIToken = o.token
	}
	if o.keyType != "" {
		if cfg.KeyType, err = pql.ParseKeyType(o.keyType); err != nil {
			return nil, err
		}
	}
	if o.poolID != "" {
		cfg.PoolID = o.poolID
	}
	if o.dataModelID != "" {
		cfg.DataModelID = o.dataModelID
	}
	return cfg, nil
}

// openSession is replaced in tests.
var openSession = func(cfg *pql.Config) (*pql.Session, error) {
	return pql.NewSession(cfg)
}

func (o *globalOptions) session() (*pql.Session, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return openSession(cfg)
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "pql",
		Short:         "Run PQL queries against EMS data models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := validateOutputFormat(opts.output); err != nil {
				return err
			}
			if opts.logLevel != "" {
				return pql.GetLogger().SetLogLevel(opts.logLevel)
			}
			return nil
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	opts.register(root.PersistentFlags())

	root.AddCommand(
		newQueryCmd(opts),
		newExportCmd(opts),
		newSchemaCmd(opts),
		newModelsCmd(opts),
		newOpenCmd(opts),
		newConfigureCmd(opts),
		newVersionCmd(),
	)
	return root
}

func execute(args []string) int {
	root := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		var qe *pql.QueryError
		if errors.As(err, &qe) && qe.Kind == pql.Configuration {
			return 2
		}
		return 1
	}
	return 0
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "pql version %s\n", pql.PQLGoClientVersion)
			return err
		},
	}
}

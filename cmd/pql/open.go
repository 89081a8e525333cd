package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	pql "github.com/pqlclient/gopql"
)

const dataModelUIPath = "/integration/ui/pools/%s/data-configuration/process-data-models/%s"

// openURL is replaced in tests.
var openURL = browser.OpenURL

func dataModelURL(cfg *pql.Config) (string, error) {
	if cfg.BaseURL == "" {
		return "", errors.New("no team URL configured")
	}
	if cfg.PoolID == "" || cfg.DataModelID == "" {
		return "", errors.New("both --pool and --data-model are required")
	}
	return strings.TrimRight(cfg.BaseURL, "/") +
		fmt.Sprintf(dataModelUIPath, url.PathEscape(cfg.PoolID), url.PathEscape(cfg.DataModelID)), nil
}

func newOpenCmd(g *globalOptions) *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the data model in the EMS web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			target, err := dataModelURL(cfg)
			if err != nil {
				return err
			}
			if printOnly {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), target)
				return err
			}
			return openURL(target)
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the URL instead of opening a browser")
	return cmd
}

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	pql "github.com/pqlclient/gopql"
)

// prompter reads answers for pql configure. Secrets are read without echo
// when stdin is a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	// fd is the terminal file descriptor, -1 when stdin is not a terminal
	fd int
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
	}
	return p
}

func (p *prompter) ask(label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	answer, err := p.readLine()
	if err != nil {
		return "", err
	}
	if answer != "" {
		return answer, nil
	}
	return current, nil
}

func (p *prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) askSecret(label string, hasCurrent bool) (string, error) {
	if hasCurrent {
		fmt.Fprintf(p.out, "%s [keep current]: ", label)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	if p.fd < 0 {
		return p.readLine()
	}
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func newConfigureCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Create or update a connection in connections.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name := g.connection
			if name == "" {
				name = "default"
			}
			cfg, err := pql.LoadNamedConnectionConfig(name)
			if err != nil {
				cfg = &pql.Config{}
			}
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			if cfg.BaseURL, err = p.ask("Team URL", firstNonEmpty(g.url, cfg.BaseURL)); err != nil {
				return err
			}
			keyType, err := p.ask("Key type (BEARER or APP_KEY)", firstNonEmpty(g.keyType, string(cfg.KeyType), string(pql.KeyTypeBearer)))
			if err != nil {
				return err
			}
			if cfg.KeyType, err = pql.ParseKeyType(keyType); err != nil {
				return err
			}
			token := g.token
			if token == "" {
				if token, err = p.askSecret("API token", cfg.APIToken != ""); err != nil {
					return err
				}
			}
			if token != "" {
				cfg.APIToken = token
			}
			if cfg.PoolID, err = p.ask("Data pool id", firstNonEmpty(g.poolID, cfg.PoolID)); err != nil {
				return err
			}
			if cfg.DataModelID, err = p.ask("Data model id", firstNonEmpty(g.dataModelID, cfg.DataModelID)); err != nil {
				return err
			}
			if err = cfg.Validate(); err != nil {
				return err
			}
			filePath, err := pql.WriteConnectionConfig(name, cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "connection %s saved to %s\n", name, filePath)
			return err
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

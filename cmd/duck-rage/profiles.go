package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/jkaninda/duck-rage/internal/config"
	"github.com/jkaninda/duck-rage/internal/credential"
)

var profilesConfigPath string

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List configured connection profiles",
	Long: `List the connection profiles from the config file, with the DuckDB
secret name each one derives. Profiles never contain secret values, so
there is nothing sensitive to print.`,
	RunE: runProfiles,
}

func init() {
	profilesCmd.Flags().StringVar(&profilesConfigPath, "config", config.DefaultPath(), "path to profiles file")
}

func runProfiles(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(goutils.Env(config.EnvConfig, profilesConfigPath))
	if err != nil {
		return err
	}

	if len(cfg.Profiles) == 0 {
		fmt.Println("no profiles configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tKIND\tENDPOINT\tDATABASE\tUSER\tSECRET KEY\tSECRET NAME")
	for _, name := range cfg.Names() {
		p := cfg.Profiles[name]
		port := p.Port
		if port == 0 {
			if kind, err := credential.ParseKind(p.Kind); err == nil {
				port = kind.DefaultPort()
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s:%d\t%s\t%s\t%s\t%s\n",
			name, p.Kind, p.Host, port, p.Database, p.User, p.SecretKey,
			credential.SecretName(p.Database))
	}
	return w.Flush()
}

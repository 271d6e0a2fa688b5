package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	initName     string
	initType     string
	initBase     string
	initTarget   string
	initSchema   string
	initDefault  bool
	initLanguage string

	pairsOutput string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config file or add a database pair to it",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "List configured database pairs",
	Args:  cobra.NoArgs,
	RunE:  runPairs,
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "pair name")
	initCmd.Flags().StringVar(&initType, "type", "", "database type: postgres, mysql or sqlite")
	initCmd.Flags().StringVar(&initBase, "base", "", "base (reference) connection URL")
	initCmd.Flags().StringVar(&initTarget, "target", "", "target connection URL")
	initCmd.Flags().StringVar(&initSchema, "schema", "", "postgres schema (default: current_schema())")
	initCmd.Flags().BoolVar(&initDefault, "default", false, "make this the default pair")
	initCmd.Flags().StringVar(&initLanguage, "language", "", "set current_language: english or korean")
	for _, name := range []string{"name", "type", "base", "target"} {
		initCmd.MarkFlagRequired(name)
	}

	pairsCmd.Flags().StringVarP(&pairsOutput, "output", "o", "table", "output format: table or yaml")
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		d := defaultConfig()
		cfg = &d
	case err != nil:
		return err
	}

	pair := DatabasePair{
		Name:             strings.TrimSpace(initName),
		DatabaseType:     initType,
		BaseConnection:   initBase,
		TargetConnection: initTarget,
		Schema:           initSchema,
	}
	if pair.Name == "" {
		return fmt.Errorf("--name must not be empty")
	}
	makeDefault := initDefault || len(cfg.DatabasePairs) == 0
	if err := cfg.UpsertPair(pair, makeDefault); err != nil {
		return fmt.Errorf("database pair %q: %w", pair.Name, err)
	}
	if initLanguage != "" {
		lang, err := parseLanguage(initLanguage)
		if err != nil {
			return err
		}
		cfg.CurrentLanguage = string(lang)
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	if err := saveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved pair %q to %s\n", pair.Name, path)
	return nil
}

func runPairs(cmd *cobra.Command, _ []string) error {
	cfg, _, err := openConfig()
	if err != nil {
		return err
	}
	switch pairsOutput {
	case "table":
		return writePairsTable(cmd.OutOrStdout(), cfg)
	case "yaml":
		return writePairsYAML(cmd.OutOrStdout(), cfg)
	default:
		return fmt.Errorf("unsupported output format %q (must be table or yaml)", pairsOutput)
	}
}

// pairView is a pair as shown to the user, with passwords redacted.
type pairView struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"database_type"`
	Base    string `yaml:"base_connection"`
	Target  string `yaml:"target_connection"`
	Schema  string `yaml:"schema,omitempty"`
	Default bool   `yaml:"default"`
}

func pairViews(cfg *Config) []pairView {
	views := make([]pairView, 0, len(cfg.DatabasePairs))
	for _, p := range cfg.DatabasePairs {
		views = append(views, pairView{
			Name:    p.Name,
			Type:    p.DatabaseType,
			Base:    redactURL(p.BaseConnection),
			Target:  redactURL(p.TargetConnection),
			Schema:  p.Schema,
			Default: p.Name == cfg.DefaultPair,
		})
	}
	return views
}

func writePairsTable(w io.Writer, cfg *Config) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tTYPE\tBASE\tTARGET\tDEFAULT\n")
	for _, v := range pairViews(cfg) {
		def := ""
		if v.Default {
			def = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Name, v.Type, v.Base, v.Target, def)
	}
	return tw.Flush()
}

func writePairsYAML(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]pairView{"database_pairs": pairViews(cfg)}); err != nil {
		return fmt.Errorf("encode pairs: %w", err)
	}
	return enc.Close()
}

// keywordPassword matches password=value in keyword/value DSNs, with the
// value bare or single-quoted.
var keywordPassword = regexp.MustCompile(`(?i)\bpassword\s*=\s*('(?:[^'\\]|\\.)*'|\S+)`)

// redactURL hides the password of URL-style connection strings. Keyword DSNs,
// native MySQL DSNs and file paths are returned with any password masked by hand.
func redactURL(raw string) string {
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil {
			if q := u.Query(); q.Has("password") {
				q.Set("password", "xxxxx")
				u.RawQuery = q.Encode()
			}
			return u.Redacted()
		}
	}
	// host=db user=app password=secret
	if keywordPassword.MatchString(raw) {
		return keywordPassword.ReplaceAllString(raw, "password=xxxxx")
	}
	// user:pass@tcp(host)/db
	if at := strings.LastIndex(raw, "@"); at > 0 {
		if colon := strings.Index(raw[:at], ":"); colon >= 0 {
			return raw[:colon+1] + "xxxxx" + raw[at:]
		}
	}
	return raw
}

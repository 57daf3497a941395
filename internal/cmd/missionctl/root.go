// Package missionctl implements the operator CLI for the missions engine.
package missionctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	entrypoint "github.com/project-89/89-sub004/internal/platform/cmd"
	"github.com/project-89/89-sub004/internal/services/missions/bootstrap"
)

// Config holds the settings shared by every missionctl command.
type Config struct {
	DBPath       string `env:"PROXIM8_MISSIONS_DB_PATH" envDefault:"data/missions.db"`
	WorkerDBPath string `env:"PROXIM8_WORKER_DB_PATH" envDefault:"data/worker.db"`
	CatalogPath  string `env:"PROXIM8_MISSIONS_CATALOG_PATH"`
	ArchiveDir   string `env:"PROXIM8_MISSIONS_AUDIT_ARCHIVE_DIR"`
	Actor        string `env:"PROXIM8_MISSIONCTL_ACTOR"`
	Output       string `env:"PROXIM8_MISSIONCTL_OUTPUT" envDefault:"table"`
	Verbose      bool   `env:"PROXIM8_MISSIONCTL_VERBOSE"`
}

type cli struct {
	cfg Config
}

// NewRootCommand builds the missionctl command tree. Environment values
// become flag defaults.
func NewRootCommand() (*cobra.Command, error) {
	c := &cli{}
	if err := entrypoint.ParseConfig(&c.cfg); err != nil {
		return nil, err
	}
	if c.cfg.Actor == "" {
		c.cfg.Actor = currentUser()
	}

	root := &cobra.Command{
		Use:   "missionctl",
		Short: "Operate the Proxim8 missions engine",
		Long: `missionctl inspects and repairs the missions store directly.

Commands:
  deployment   Show, finalize or clear a deployment
  sweep        Finalize due deployments once, or list the worker's sweep runs
  proxim8      Register and list Proxim8 ownership
  catalog      Validate mission catalog files
  audit        List audit entries or read an audit archive
  db           Show applied schema migrations
  health       Probe a running service's gRPC health endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch c.cfg.Output {
			case "table", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unsupported output %q (want table, json or yaml)", c.cfg.Output)
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.cfg.DBPath, "db-path", c.cfg.DBPath, "Missions SQLite database path")
	flags.StringVar(&c.cfg.WorkerDBPath, "worker-db-path", c.cfg.WorkerDBPath, "Worker SQLite database path")
	flags.StringVar(&c.cfg.CatalogPath, "catalog", c.cfg.CatalogPath, "Mission catalog YAML file (embedded catalog when empty)")
	flags.StringVar(&c.cfg.ArchiveDir, "audit-archive-dir", c.cfg.ArchiveDir, "Directory for compressed audit archives")
	flags.StringVar(&c.cfg.Actor, "actor", c.cfg.Actor, "Operator name recorded in the audit log")
	flags.StringVarP(&c.cfg.Output, "output", "o", c.cfg.Output, "Output format (table, json, yaml)")
	flags.BoolVarP(&c.cfg.Verbose, "verbose", "v", c.cfg.Verbose, "Log engine activity to stderr")

	root.AddCommand(
		c.deploymentCommand(),
		c.sweepCommand(),
		c.proxim8Command(),
		c.catalogCommand(),
		c.auditCommand(),
		c.dbCommand(),
		c.healthCommand(),
	)
	return root, nil
}

// Execute runs missionctl with telemetry and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root, err := NewRootCommand()
	if err != nil {
		fmt.Fprintf(stderr, "missionctl: %v\n", err)
		return 1
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err = entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAdmin, func(ctx context.Context) error {
		return root.ExecuteContext(ctx)
	})
	if err != nil {
		fmt.Fprintf(stderr, "missionctl: %v\n", err)
		return 1
	}
	return 0
}

// openRuntime opens the engine against the configured store.
func (c *cli) openRuntime(cmd *cobra.Command) (*bootstrap.Runtime, error) {
	logf := func(string, ...any) {}
	if c.cfg.Verbose {
		stderr := cmd.ErrOrStderr()
		logf = func(format string, args ...any) { fmt.Fprintf(stderr, format+"\n", args...) }
	}
	return bootstrap.Open(cmd.Context(), bootstrap.Options{
		DBPath:      c.cfg.DBPath,
		CatalogPath: c.cfg.CatalogPath,
		ArchiveDir:  c.cfg.ArchiveDir,
		Logf:        logf,
	})
}

// withRuntime runs fn against an open runtime and closes it afterwards.
func (c *cli) withRuntime(cmd *cobra.Command, fn func(rt *bootstrap.Runtime) error) (err error) {
	rt, err := c.openRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(rt)
}

// render writes value as JSON or YAML, or calls table for the table format.
func (c *cli) render(w io.Writer, value any, table func(tw *tabwriter.Writer)) error {
	switch c.cfg.Output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && strings.TrimSpace(u.Username) != "" {
		return u.Username
	}
	if name := strings.TrimSpace(os.Getenv("USER")); name != "" {
		return name
	}
	return ""
}

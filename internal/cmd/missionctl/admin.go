package missionctl

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/project-89/89-sub004/internal/platform/discovery"
	platformgrpc "github.com/project-89/89-sub004/internal/platform/grpc"
	"github.com/project-89/89-sub004/internal/platform/timeouts"
	"github.com/project-89/89-sub004/internal/services/missions/app"
	"github.com/project-89/89-sub004/internal/services/missions/audit"
	"github.com/project-89/89-sub004/internal/services/missions/bootstrap"
	"github.com/project-89/89-sub004/internal/services/missions/catalogfs"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
	workersqlite "github.com/project-89/89-sub004/internal/services/worker/storage/sqlite"
)

type sweepOutput struct {
	Due         int `json:"due" yaml:"due"`
	Finalized   int `json:"finalized" yaml:"finalized"`
	Failed      int `json:"failed" yaml:"failed"`
	LoreRetried int `json:"loreRetried" yaml:"loreRetried"`
	LoreSynced  int `json:"loreSynced" yaml:"loreSynced"`
}

func (c *cli) sweepCommand() *cobra.Command {
	var limit, concurrency int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Finalize every due deployment and retry pending lore once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(rt *bootstrap.Runtime) error {
				report, err := rt.Engine.Sweep(cmd.Context(), app.SweepOptions{Limit: limit, Concurrency: concurrency})
				if err != nil {
					return err
				}
				out := sweepOutput(report)
				return c.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
					fmt.Fprintln(tw, "DUE\tFINALIZED\tFAILED\tLORE RETRIED\tLORE SYNCED")
					fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\n", out.Due, out.Finalized, out.Failed, out.LoreRetried, out.LoreSynced)
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum deployments to finalize")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Concurrent finalizations")
	cmd.AddCommand(c.sweepRunsCommand())
	return cmd
}

type sweepRunOutput struct {
	ID          int64     `json:"id" yaml:"id"`
	Consumer    string    `json:"consumer" yaml:"consumer"`
	StartedAt   time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt" yaml:"finishedAt"`
	Due         int       `json:"due" yaml:"due"`
	Finalized   int       `json:"finalized" yaml:"finalized"`
	Failed      int       `json:"failed" yaml:"failed"`
	LoreRetried int       `json:"loreRetried" yaml:"loreRetried"`
	LoreSynced  int       `json:"loreSynced" yaml:"loreSynced"`
	LastError   string    `json:"lastError,omitempty" yaml:"lastError,omitempty"`
}

func (c *cli) sweepRunsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the worker's recorded sweep passes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			store, err := workersqlite.Open(cmd.Context(), c.cfg.WorkerDBPath)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := store.Close(); closeErr != nil && err == nil {
					err = closeErr
				}
			}()
			runs, err := store.ListSweepRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := make([]sweepRunOutput, 0, len(runs))
			for _, r := range runs {
				out = append(out, sweepRunOutput(r))
			}
			return c.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tCONSUMER\tSTARTED\tDUE\tFINALIZED\tFAILED\tLORE SYNCED\tLAST ERROR")
				for _, r := range out {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n", r.ID, r.Consumer, r.StartedAt.Format(time.RFC3339), r.Due, r.Finalized, r.Failed, r.LoreSynced, r.LastError)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

type proxim8Output struct {
	ID          string    `json:"id" yaml:"id"`
	AgentID     string    `json:"agentId" yaml:"agentId"`
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Personality string    `json:"personality,omitempty" yaml:"personality,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

func (c *cli) proxim8Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxim8",
		Short: "Manage the Proxim8 ownership directory",
	}

	var agentID, name, personality string
	register := &cobra.Command{
		Use:   "register <proxim8-id>",
		Short: "Record that an agent owns a Proxim8",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd, func(rt *bootstrap.Runtime) error {
				if err := rt.Engine.RegisterProxim8(cmd.Context(), app.RegisterProxim8Request{
					Actor:       c.cfg.Actor,
					Proxim8ID:   args[0],
					AgentID:     agentID,
					Name:        name,
					Personality: personality,
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered proxim8 %s to agent %s\n", args[0], agentID)
				return nil
			})
		},
	}
	register.Flags().StringVar(&agentID, "agent", "", "Owning agent id")
	register.Flags().StringVar(&name, "name", "", "Display name")
	register.Flags().StringVar(&personality, "personality", "", "Personality type used for compatibility")
	_ = register.MarkFlagRequired("agent")

	var listAgent string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the Proxim8s registered to an agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(rt *bootstrap.Runtime) error {
				records, err := rt.Engine.ListAgentProxim8s(cmd.Context(), listAgent)
				if err != nil {
					return err
				}
				out := make([]proxim8Output, 0, len(records))
				for _, r := range records {
					out = append(out, proxim8Output{ID: r.ID, AgentID: r.OwnerAgentID, Name: r.Name, Personality: r.Personality, UpdatedAt: r.UpdatedAt})
				}
				return c.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
					fmt.Fprintln(tw, "ID\tNAME\tPERSONALITY\tUPDATED")
					for _, p := range out {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Personality, p.UpdatedAt.Format(time.RFC3339))
					}
				})
			})
		},
	}
	list.Flags().StringVar(&listAgent, "agent", "", "Owning agent id")
	_ = list.MarkFlagRequired("agent")

	cmd.AddCommand(register, list)
	return cmd
}

type catalogOutput struct {
	File         string `json:"file" yaml:"file"`
	Missions     int    `json:"missions" yaml:"missions"`
	Coordinators int    `json:"coordinators" yaml:"coordinators"`
}

func (c *cli) catalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with mission catalog files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a catalog file against the schema and domain rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read catalog: %w", err)
			}
			cat, err := catalogfs.Parse(raw, args[0])
			if err != nil {
				return err
			}
			out := catalogOutput{File: args[0], Missions: cat.Len(), Coordinators: len(cat.Coordinators())}
			return c.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "%s\tok\t%d missions\t%d coordinators\n", out.File, out.Missions, out.Coordinators)
			})
		},
	})
	return cmd
}

func (c *cli) auditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect administrative audit entries",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent audit entries from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(rt *bootstrap.Runtime) error {
				entries, err := rt.Engine.AuditLog(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return c.renderAudit(cmd, entries)
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "Maximum entries to list")

	read := &cobra.Command{
		Use:   "read <archive-file>",
		Short: "Decode a compressed audit archive file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := audit.ReadFile(args[0])
			if err != nil {
				return err
			}
			return c.renderAudit(cmd, entries)
		},
	}

	cmd.AddCommand(list, read)
	return cmd
}

func (c *cli) renderAudit(cmd *cobra.Command, entries []storage.AuditEntry) error {
	if entries == nil {
		entries = []storage.AuditEntry{}
	}
	return c.render(cmd.OutOrStdout(), entries, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "TIME\tACTOR\tACTION\tTARGET\tREASON")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Actor, e.Action, e.TargetID, e.Reason)
		}
	})
}

type migrationOutput struct {
	Name      string    `json:"name" yaml:"name"`
	AppliedAt time.Time `json:"appliedAt" yaml:"appliedAt"`
}

func (c *cli) dbCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect the missions database",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(rt *bootstrap.Runtime) error {
				records, err := rt.Store.Migrations(cmd.Context())
				if err != nil {
					return err
				}
				out := make([]migrationOutput, 0, len(records))
				for _, r := range records {
					out = append(out, migrationOutput(r))
				}
				return c.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
					fmt.Fprintln(tw, "MIGRATION\tAPPLIED")
					for _, m := range out {
						fmt.Fprintf(tw, "%s\t%s\n", m.Name, m.AppliedAt.Format(time.RFC3339))
					}
				})
			})
		},
	})
	return cmd
}

func (c *cli) healthCommand() *cobra.Command {
	var service string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health <service|addr>",
		Short: "Wait for a service's gRPC health check to report SERVING",
		Long: `health probes a gRPC health endpoint. The target is either a host:port
or a service name (missions, worker) resolved to its in-network address.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, defaultService := discovery.ResolveHealthTarget(args[0])
			if addr == "" {
				return fmt.Errorf("unknown service %q", args[0])
			}
			if !cmd.Flags().Changed("service") {
				service = defaultService
			}
			logf := func(string, ...any) {}
			if c.cfg.Verbose {
				logf = func(format string, a ...any) { fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", a...) }
			}
			if err := platformgrpc.Probe(cmd.Context(), addr, service, timeout, logf); err != nil {
				return errors.Join(fmt.Errorf("%s is not serving", addr), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s SERVING\n", addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "Health service name (defaults to the named service's component)")
	cmd.Flags().DurationVar(&timeout, "timeout", timeouts.HealthProbe, "How long to wait")
	return cmd
}

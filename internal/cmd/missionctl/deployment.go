package missionctl

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
	"github.com/project-89/89-sub004/internal/services/missions/app"
	"github.com/project-89/89-sub004/internal/services/missions/bootstrap"
	"github.com/project-89/89-sub004/internal/services/missions/domain/deployment"
)

type deploymentOutput struct {
	ID           string             `json:"id" yaml:"id"`
	MissionID    string             `json:"missionId" yaml:"missionId"`
	AgentID      string             `json:"agentId" yaml:"agentId"`
	Proxim8ID    string             `json:"proxim8Id" yaml:"proxim8Id"`
	Approach     string             `json:"approach" yaml:"approach"`
	Status       string             `json:"status" yaml:"status"`
	Phase        int                `json:"phase" yaml:"phase"`
	PhaseCount   int                `json:"phaseCount,omitempty" yaml:"phaseCount,omitempty"`
	Progress     float64            `json:"progressPercent,omitempty" yaml:"progressPercent,omitempty"`
	DeployedAt   time.Time          `json:"deployedAt" yaml:"deployedAt"`
	CompletesAt  time.Time          `json:"completesAt" yaml:"completesAt"`
	PredictedWin bool               `json:"predictedSuccess" yaml:"predictedSuccess"`
	LoreSync     string             `json:"loreSync" yaml:"loreSync"`
	LoreAttempts int                `json:"loreSyncAttempts" yaml:"loreSyncAttempts"`
	Result       *deployment.Result `json:"result,omitempty" yaml:"result,omitempty"`
}

func newDeploymentOutput(d deployment.Deployment) deploymentOutput {
	out := deploymentOutput{
		ID:           d.ID,
		MissionID:    d.MissionID,
		AgentID:      d.AgentID,
		Proxim8ID:    d.Proxim8ID,
		Approach:     string(d.Approach),
		Status:       string(d.Status()),
		Phase:        d.PhaseIndex(),
		DeployedAt:   d.DeployedAt,
		CompletesAt:  d.CompletesAt,
		PredictedWin: d.Outcome.Success,
		LoreSync:     string(d.LoreSync.Status),
		LoreAttempts: d.LoreSync.Attempts,
	}
	if result, ok := d.Result(); ok {
		out.Result = &result
	}
	return out
}

func (c *cli) deploymentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deployment",
		Short: "Inspect and repair deployments",
	}
	cmd.AddCommand(c.deploymentShowCommand(), c.deploymentFinalizeCommand(), c.deploymentClearCommand())
	return cmd
}

func (c *cli) deploymentShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <deployment-id>",
		Short: "Show a deployment as the agent would see it now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd, func(rt *bootstrap.Runtime) error {
				view, err := rt.Engine.GetStatus(cmd.Context(), args[0], rt.Engine.Now())
				if err != nil {
					return err
				}
				out := newDeploymentOutput(view.Deployment)
				out.PhaseCount = view.PhaseCount
				out.Progress = view.ProgressPercent
				return c.renderDeployment(cmd, out)
			})
		},
	}
}

func (c *cli) deploymentFinalizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <deployment-id>",
		Short: "Finalize a due deployment and distribute its rewards",
		Long: `finalize resolves a deployment whose completion time has passed.
It is idempotent: a terminal deployment is shown unchanged. A deployment
that is not yet due is rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd, func(rt *bootstrap.Runtime) error {
				now := rt.Engine.Now()
				d, err := rt.Engine.Finalize(cmd.Context(), args[0], now)
				if err != nil {
					return err
				}
				if !d.Terminal() {
					return apperrors.WithMetadata(apperrors.CodeDeploymentNotDue,
						fmt.Sprintf("deployment %s completes at %s", d.ID, d.CompletesAt.Format(time.RFC3339)),
						map[string]string{"deploymentId": d.ID, "completesAt": d.CompletesAt.Format(time.RFC3339)})
				}
				return c.renderDeployment(cmd, newDeploymentOutput(d))
			})
		},
	}
}

func (c *cli) deploymentClearCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "clear <deployment-id>",
		Short: "Delete a deployment so the agent may redeploy",
		Long: `clear removes a deployment of any status. Rewards already granted stay
granted. The action is recorded in the audit log with --actor and --reason.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd, func(rt *bootstrap.Runtime) error {
				if err := rt.Engine.ClearDeployment(cmd.Context(), app.ClearRequest{
					DeploymentID: args[0],
					Actor:        c.cfg.Actor,
					Reason:       reason,
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared deployment %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the deployment is being cleared")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (c *cli) renderDeployment(cmd *cobra.Command, out deploymentOutput) error {
	return c.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "ID\t%s\n", out.ID)
		fmt.Fprintf(tw, "MISSION\t%s\n", out.MissionID)
		fmt.Fprintf(tw, "AGENT\t%s\n", out.AgentID)
		fmt.Fprintf(tw, "PROXIM8\t%s\n", out.Proxim8ID)
		fmt.Fprintf(tw, "APPROACH\t%s\n", out.Approach)
		fmt.Fprintf(tw, "STATUS\t%s\n", out.Status)
		fmt.Fprintf(tw, "PHASE\t%d\n", out.Phase)
		fmt.Fprintf(tw, "COMPLETES\t%s\n", out.CompletesAt.Format(time.RFC3339))
		fmt.Fprintf(tw, "LORE SYNC\t%s (%d attempts)\n", out.LoreSync, out.LoreAttempts)
		if out.Result != nil {
			fmt.Fprintf(tw, "SUCCESS\t%t\n", out.Result.Success)
			fmt.Fprintf(tw, "REWARDS\t%d points, %d xp, shift %d\n", out.Result.TimelinePoints, out.Result.Experience, out.Result.TimelineShift)
		}
	})
}

package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"nvr-orchestrator/config"
	"nvr-orchestrator/dto"
	"nvr-orchestrator/repository"
	server2 "nvr-orchestrator/server"
	"nvr-orchestrator/service"
)

func rules(cfg *config.Config) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "manage the rule table",
	}
	rulesCmd.AddCommand(listRules(cfg), addRule(cfg), deleteRule(cfg))
	return rulesCmd
}

// withRules opens the configured rule store for the duration of fn.
func withRules(cmd *cobra.Command, cfg *config.Config, fn func(svc service.RuleService) error) error {
	ctx := server2.SetupLogger(cfg)
	repo, err := repository.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	cmd.SetContext(ctx)
	return fn(service.NewRuleService(repo))
}

func listRules(cfg *config.Config) *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "list",
		Short: "list rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRules(cmd, cfg, func(svc service.RuleService) error {
				list, err := svc.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(list)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tLABEL\tACTION\tCAMERA")
				for _, r := range list {
					camera := r.Camera
					if camera == "" {
						camera = "*"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Label, r.Action, camera)
				}
				return w.Flush()
			})
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print rules as JSON")
	return c
}

func addRule(cfg *config.Config) *cobra.Command {
	var req dto.RuleRequest
	var camera string
	c := &cobra.Command{
		Use:   "add <id>",
		Short: "add a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ID = args[0]
			if cmd.Flags().Changed("camera") {
				req.Camera = &camera
			}
			return withRules(cmd, cfg, func(svc service.RuleService) error {
				rule, err := svc.Add(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rule %s added (%s)\n", rule.ID, rule.Action)
				return nil
			})
		},
	}
	c.Flags().StringVar(&req.Label, "label", "", "object label the rule is meant for")
	c.Flags().StringVar(&req.Action, "action", "summarize", `"summarize" or "add to search"`)
	c.Flags().StringVar(&camera, "camera", "", "only match events from this camera")
	return c
}

func deleteRule(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "delete a rule and its recorded results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRules(cmd, cfg, func(svc service.RuleService) error {
				if err := svc.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rule %s deleted\n", args[0])
				return nil
			})
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	v1 "k8s.io/api/core/v1"

	"github.com/g-uva/kube-carbon-scheduler/plugins"
)

func newAdviseCommand(g *globals) *cobra.Command {
	var (
		podPath  string
		nodePath string
		offline  offlineFlags
	)

	cmd := &cobra.Command{
		Use:   "advise",
		Short: "Annotate a Kubernetes pod manifest with a decision",
		Long: `Read a pod (and optionally the node it would land on) as JSON, decide
for it, and print the pod with the decision written into its annotations.

Criticality comes from the carbon.g-uva.io/criticality annotation and the
region from the node's topology.kubernetes.io/region label.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var pod v1.Pod
			if err := readJSON(podPath, &pod); err != nil {
				return err
			}
			var node *v1.Node
			if nodePath != "" {
				node = &v1.Node{}
				if err := readJSON(nodePath, node); err != nil {
					return err
				}
			}

			cfg, err := g.loadConfig(offline)
			if err != nil {
				return err
			}
			e, err := g.buildEngine(cfg)
			if err != nil {
				return err
			}

			advisor := &plugins.PodAdvisor{Engine: e, Log: g.log}
			out, _, err := advisor.Advise(cmd.Context(), &pod, node)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&podPath, "pod", "", "Pod manifest (JSON)")
	cmd.Flags().StringVar(&nodePath, "node", "", "Node manifest (JSON)")
	offline.register(cmd)
	_ = cmd.MarkFlagRequired("pod")

	return cmd
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

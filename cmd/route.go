package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"metropet.dev/trtc"
)

var routeCmd = &cobra.Command{
	Use:   "route <start> <end>",
	Short: "Plans a trip between two stations",
	Args:  cobra.ExactArgs(2),
	RunE:  route,
}

var (
	official bool
	local    bool
	textOnly bool
)

func init() {
	routeCmd.Flags().BoolVarP(&official, "official", "o", false, "Only use the operator's recommended route")
	routeCmd.Flags().BoolVarP(&local, "local", "l", false, "Only use the local graph")
	routeCmd.Flags().BoolVarP(&textOnly, "text", "t", false, "Print directions instead of JSON")
	rootCmd.AddCommand(routeCmd)
}

func route(cmd *cobra.Command, args []string) error {
	if official && local {
		return fmt.Errorf("--official and --local are mutually exclusive")
	}

	ctx := context.Background()
	network, err := LoadNetwork(ctx)
	if err != nil {
		return err
	}

	var plan trtc.Plan
	switch {
	case official:
		var result *trtc.RouteResult
		result, err = network.Router.OfficialRoute(ctx, args[0], args[1])
		if result != nil {
			plan = result
		}
	case local:
		plan, err = network.Router.FindShortestPath(args[0], args[1])
	default:
		plan, err = network.Router.PlanRoute(ctx, args[0], args[1])
	}
	if err != nil {
		return err
	}

	if !textOnly {
		return printJSON(plan)
	}

	switch p := plan.(type) {
	case *trtc.RouteResult:
		fmt.Println(p.Message)
	case trtc.Suggested:
		fmt.Printf("%q not found. Did you mean %q?\n", p.Query, p.Name)
	}

	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/planweave/config"
	"github.com/mohammad-safakhou/planweave/internal/agent/core"
	"github.com/mohammad-safakhou/planweave/tools/web_search"
)

const defaultGoal = "Get me a list of the names of people who have been prominent in AI news this week, along with why they are in the news"

const machineSketch = `
  +---------+      +-------+      +---------------+
  | planner | ---> | agent | ---> | goal_assessor |
  +---------+      +-------+      +---------------+
                       ^             |         |
                       |       satisfied    not satisfied
                       |             |         |
                       |             v         v
                       |           [END]   +--------+
                       +------------------ | replan |
                                 new plan  +--------+
                                               |
                                            respond
                                               |
                                               v
                                             [END]
`

func runCMD() *cobra.Command {
	var cfgPath string
	var input string
	var limit int
	var showFlowchart bool

	var run = &cobra.Command{
		Use:   "run",
		Short: "Execute a goal once and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			if showFlowchart {
				fmt.Print(machineSketch)
			}

			llm, err := core.NewLLMProvider(cfg.LLM)
			if err != nil {
				return err
			}
			searcher, err := newSearcher(cfg.Search)
			if err != nil {
				return err
			}
			machine := core.NewMachine(cfg, llm, searcher)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			res := machine.Run(ctx, input, core.RunConfig{RecursionLimit: limit})

			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	run.Flags().StringVar(&input, "input", defaultGoal, "goal to execute")
	run.Flags().IntVar(&limit, "recursion-limit", 0, "transition ceiling (0 = config default)")
	run.Flags().BoolVar(&showFlowchart, "flowchart", false, "print a sketch of the state machine first")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}

func newSearcher(cfg config.SearchConfig) (web_search.WebSearcher, error) {
	switch web_search.Provider(cfg.Provider) {
	case web_search.BraveProvider:
		return web_search.NewWebSearcher(web_search.BraveProvider, cfg.BraveAPIKey)
	default:
		return web_search.NewWebSearcher(web_search.SerperProvider, cfg.SerperAPIKey)
	}
}

// Command komondor-sim is the minimal CLI around the simulation core: load
// a YAML scenario, validate it, build the full mesh of nodes on a fresh
// engine.Runtime, run it to completion, and print a per-node summary.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/doismellburning/komondor-go/internal/agent"
	"github.com/doismellburning/komondor-go/internal/engine"
	"github.com/doismellburning/komondor-go/internal/node"
	"github.com/doismellburning/komondor-go/internal/phy"
	"github.com/doismellburning/komondor-go/internal/rng"
	"github.com/doismellburning/komondor-go/internal/simconfig"
	"github.com/doismellburning/komondor-go/internal/trace"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("komondor-sim", pflag.ContinueOnError)
	scenarioPath := flags.String("scenario", "", "path to a scenario YAML file")
	seed := flags.Int64("seed", 1, "seed for the shared RNG source")
	until := flags.Duration("until", 0, "override the scenario's stop time")
	logLevel := flags.String("log-level", "info", "debug, info, warn, or error")
	if err := flags.Parse(args); err != nil {
		return int(simconfig.ExitConfigInvalid)
	}
	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "komondor-sim: --scenario is required")
		return int(simconfig.ExitConfigInvalid)
	}

	logger := log.New(os.Stderr)
	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	}

	scenario, err := simconfig.Load(*scenarioPath)
	if err != nil {
		logger.Error("failed to load scenario", "err", err)
		return int(simconfig.ExitConfigInvalid)
	}
	if err := simconfig.Validate(scenario); err != nil {
		logger.Error("scenario failed validation", "err", err)
		return int(simconfig.ExitConfigInvalid)
	}

	stopTime := scenario.StopTime
	if *until > 0 {
		stopTime = until.Seconds()
	}

	rt := engine.NewRuntime()
	src := rng.New(*seed)
	recorder := trace.NewRecorder(logger)
	rates := phy.StaticRateTable{}
	frameParams := scenario.System.FrameParams()
	pathLoss := scenario.System.PathLoss()

	nodes := make([]*node.Node, 0, len(scenario.Nodes))
	for _, cfg := range scenario.Nodes {
		n := node.New(rt, src, scenario.System, cfg, pathLoss, rates, frameParams, 0)
		rt.Register(n)
		nodes = append(nodes, n)
	}
	node.Wire(rt, nodes)
	for _, n := range nodes {
		trace.Attach(rt, recorder, fmt.Sprintf("node-%d", n.ID), n)
	}

	// Agents attach per WLAN code; centralized ones share one controller
	// clocked at the fastest of their requested periods.
	var centralized []*agent.Agent
	ccPeriod := 0.0
	for _, acfg := range scenario.Agents {
		var wlanNodes []*node.Node
		for i, cfg := range scenario.Nodes {
			if cfg.WLANCode == acfg.WLANCode {
				wlanNodes = append(wlanNodes, nodes[i])
			}
		}
		ag := agent.New(rt, src, acfg, wlanNodes)
		rt.Register(ag)
		if acfg.Centralized {
			centralized = append(centralized, ag)
			if ccPeriod == 0 || acfg.TimeBetweenRequests < ccPeriod {
				ccPeriod = acfg.TimeBetweenRequests
			}
		}
	}
	if len(centralized) > 0 {
		rt.Register(agent.NewCentralController(rt, ccPeriod, centralized))
	}

	logger.Info("starting run", "nodes", len(nodes), "stop_time", stopTime)
	start := time.Now()
	rt.Run(engine.Time(stopTime))
	logger.Info("run complete", "wall_clock", time.Since(start), "sim_time", rt.Now())

	summaries := trace.Summarize(nodes, stopTime, scenario.System.FrameLengthBits)
	recorder.LogSummary(summaries)

	return int(simconfig.ExitOK)
}

// cmd/athyper/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"athyper/internal/httpapi"
	"athyper/internal/kernel"
	"athyper/internal/scheduler"
	"athyper/internal/worker"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (default $ATHYPER_CONFIG or athyper.yaml)")
		mode       = flag.String("mode", "api", "runtime mode: api | worker | scheduler")
	)
	flag.Parse()

	ctx := context.Background()
	rt, err := kernel.Bootstrap(ctx, kernel.Options{
		ConfigPath: *configPath,
		Mode:       *mode,
		Modules: []kernel.Module{
			worker.Module{},
			scheduler.Module{},
		},
		Runners: map[string]kernel.Runner{
			"api":       httpapi.NewRunner(),
			"worker":    worker.NewRunner(),
			"scheduler": scheduler.NewRunner(),
		},
	})
	if err != nil {
		code := kernel.Classify(err)
		fmt.Fprintf(os.Stderr, "bootstrap failed (exit %d): %v\n", code, err)
		os.Exit(code)
	}

	if err := rt.Run(ctx); err != nil {
		rt.Log.Errorw("runtime failed", "err", err)
		rt.Shutdown("runtime error")
		os.Exit(kernel.ExitBootstrap)
	}
	rt.Shutdown("mode finished")
}

package config_test

import (
	"fmt"

	"github.com/wonny/marginrecon/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Report file: %s\n", cfg.Recon.ReportsFile)
	fmt.Printf("Fetch workers: %d\n", cfg.Recon.FetchWorkers)
	fmt.Printf("Sinks: %v\n", cfg.Notify.Sinks)
}

// main is the entry point for the rewatch CLI.
package main

import (
	"os"

	"github.com/huangsam/rewatch/cmd"
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/internal/iocache"
)

func main() {
	// Commands initialize the stores during their PreRunE setup; the manager
	// itself exists up front so handlers can hold a stable reference.
	cmd.SetCacheManager(iocache.Manager)
	defer iocache.CloseStores()

	err := cmd.Execute()

	if profErr := cmd.StopProfiling(); profErr != nil {
		contract.LogWarn("Failed to stop profiling", profErr)
	}

	if err != nil {
		contract.LogWarn("Command failed", err)
		iocache.CloseStores()
		os.Exit(1)
	}
}

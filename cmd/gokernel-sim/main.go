// Command gokernel-sim drives the kernel core through one named scenario
// and prints its event/address-space/endpoint dump, the way cmd/ublk-mem
// once drove a real block device through creation and service.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/kernelcore/gokernel"
	"github.com/kernelcore/gokernel/internal/logging"
)

func main() {
	var (
		scenario = flag.String("scenario", string(gokernel.ScenarioIPCDemoSingleSlow), "scenario to run: "+strings.Join(scenarioNames(), ", "))
		verbose  = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	h, err := gokernel.NewHarness(logger)
	if err != nil {
		logger.Error("failed to build harness", "error", err)
		os.Exit(1)
	}

	runErr := runRecoverably(h, gokernel.Scenario(*scenario))
	for _, line := range h.Kernel.Dump() {
		fmt.Println(line)
	}
	if runErr != nil {
		logger.Error("scenario returned an error", "scenario", *scenario, "error", runErr)
		os.Exit(1)
	}
}

// runRecoverably lets a fail-stop scenario's panic surface as a returned
// error instead of crashing the process, so the dump above still prints.
func runRecoverably(h *gokernel.Harness, scenario gokernel.Scenario) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scenario panicked: %v", r)
		}
	}()
	return h.Run(scenario)
}

func scenarioNames() []string {
	return []string{
		string(gokernel.ScenarioIPCTracePaths),
		string(gokernel.ScenarioIPCDemoSingleSlow),
		string(gokernel.ScenarioPageFaultDemo),
		string(gokernel.ScenarioEvilDoubleMap),
		string(gokernel.ScenarioEvilUnmapNotMapped),
		string(gokernel.ScenarioDoubleRecvSameEndpoint),
		string(gokernel.ScenarioEvilIPC),
		string(gokernel.ScenarioEndpointCloseTest),
		string(gokernel.ScenarioDeadPartnerTest),
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	repair := flag.Bool("repair", false, "Rewrite drifted current_stock values (default: report only)")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	report, err := workflow.RebuildInventoryStock(context.Background(), logger, *repair)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("checked=%d drifted=%d fixed=%d\n", report.ItemsChecked, report.ItemsDrifted, report.ItemsFixed)
	if report.ItemsDrifted > report.ItemsFixed {
		os.Exit(2)
	}
}

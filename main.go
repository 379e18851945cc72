// Command mongodbatlas-collector polls the MongoDB Atlas Admin API and
// forwards logs, events, alerts and metrics to SumoLogic.
package main

import (
	"log"
	"os"

	"github.com/sumologic/mongodbatlas-collector/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

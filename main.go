package main

import (
	"fmt"
	"os"
	"port-scanner/cmd"
	"port-scanner/logging"
)

func main() {

	if err := cmd.RunApp(); err != nil {
		logger := logging.GetSugar()
		logger.Errorf("Error when run app. Error: %+v", err)
		logging.Sync()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

}

package main

import (
	"os"

	"github.com/tuya-sensors/cmd/sensors"
)

func main() {
	if err := sensors.Execute(); err != nil {
		os.Exit(1)
	}
}

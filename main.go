package main

import (
	"os"

	"draw_queue/cmd"
)

// @Title						Draw admission queue
// @Version					1.0
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"github.com/thirai-kg/backend/internal/server"
	"github.com/thirai-kg/backend/internal/util"
	"github.com/thirai-kg/backend/pkg/logger"
	"github.com/thirai-kg/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		JSON:   util.GetEnv("LOG_FORMAT") == "json",
		Prefix: "api",
	})
	logger.Init(consoleLogger)

	server.Init()
}

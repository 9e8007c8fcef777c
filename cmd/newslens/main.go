package main

import (
	"newslens/cmd/handlers"
	"newslens/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}

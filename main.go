/*
Copyright © 2025 opsgraph
*/
package main

import (
	"github.com/joho/godotenv"
	"github.com/opsgraph/knowledge-be/cmd"
)

func main() {
	cmd.Execute()
}

func init() {
	// .env is optional; deployments normally configure via real env vars.
	_ = godotenv.Load()
}

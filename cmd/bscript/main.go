// Command bscript serves the Lua script routes described by a routes.json manifest. It is configured through the
// environment, a .env file in the working directory is loaded when present.
package main

import (
	"github.com/advdv/bscript/bsrv"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	bsrv.NewApp().Run()
}

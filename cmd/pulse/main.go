package main

import (
	"os"

	"dalal.st/pulse/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}

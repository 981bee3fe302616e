package main

import (
	"os"

	"github.com/fkie-cad/malw/app"
)

func main() {
	app.RunApp(os.Args)
}

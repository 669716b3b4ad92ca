package main

import (
	_ "time/tzdata"

	"github.com/icewatch/ticketwatch/internal/cli"
)

func main() {
	cli.Execute()
}

package main

import (
	"log"

	"github.com/usermihir/Agentic-EV/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"log"

	"github.com/awaketai/crawlrt/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("run err:%v", err)
	}
}

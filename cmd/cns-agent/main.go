package main

import (
	"github.com/NVIDIA/cns-node-agent/pkg/cli"
)

func main() {
	cli.Execute()
}

package main

import "github.com/medscan-console/cmd/medscan/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/wkalt/dapd/cmd"

func main() {
	cmd.Execute()
}

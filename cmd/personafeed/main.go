package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "personafeed"}

	root.AddCommand(serveCMD(), curateCMD())
	_ = root.Execute()
}

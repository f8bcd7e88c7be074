// Package main runs the gridsim command-line tool.
package main

import "github.com/alexfrt/smartgridsim/gridsim/cmd"

func main() {
	cmd.Execute()
}

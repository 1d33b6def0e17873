/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/o2a/bapsim/cmd"

func main() {
	cmd.Execute()
}

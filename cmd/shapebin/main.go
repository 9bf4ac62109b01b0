/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/ssargent/shapebin/cmd/shapebin/cmd"
	"github.com/ssargent/shapebin/pkg/di"
)

func main() {
	cmd.SetContainer(di.NewContainer())
	cmd.Execute()
}

package main

import "github.com/aditpras/campus-attendance/cmd"

func main() {
	cmd.Execute()
}

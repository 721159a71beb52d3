package main

import "microspark/cmd/microspark/cmd"

func main() {
	cmd.Execute()
}

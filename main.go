package main

import "recall/claims/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/sauverpro/goFasta/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/storekit/storekit/cmd/storekit/command"

func main() {
	command.Execute()
}

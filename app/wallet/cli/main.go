package main

import "github.com/ardanlabs/edublock/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/htngan/walletfeed/internal/cli"

func main() {
	cli.Execute()
}

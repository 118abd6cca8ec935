package main

import "oracle-pricefeed/internal/cli"

func main() {
	cli.Execute()
}

package main

import "facturas/internal/cli"

func main() {
	cli.Execute()
}

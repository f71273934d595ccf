package main

import "github.com/vietddude/calsync/internal/cli"

func main() {
	cli.Execute()
}

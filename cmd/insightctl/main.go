package main

import "github.com/noah-isme/insight-compliance-api/internal/cli"

func main() {
	cli.Execute()
}

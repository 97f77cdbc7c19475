package main

import "github.com/ashwinyue/qa-grader/internal/cli"

func main() {
	cli.Execute()
}

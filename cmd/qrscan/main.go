package main

import "github.com/MeKo-Tech/qrscan/cmd/qrscan/cmd"

func main() {
	cmd.Execute()
}

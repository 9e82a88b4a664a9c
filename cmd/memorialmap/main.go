package main

import "github.com/MeKo-Tech/memorialmap/internal/cmd"

func main() {
	cmd.Execute()
}

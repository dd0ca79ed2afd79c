package main

import "github.com/ValentinKolb/nora/cmd"

func main() {
	cmd.Execute()
}

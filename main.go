package main

import "github.com/andresmejia3/needle/cmd"

func main() {
	cmd.Execute()
}

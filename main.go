package main

import "nathanbeddoewebdev/hzdeploy/cmd"

func main() {
	cmd.Execute()
}

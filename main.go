package main

import "github.com/cmazet/ragchat/cmd"

func main() {
	cmd.Execute()
}

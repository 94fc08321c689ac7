package main

import "chat-relay/cmd/server/cmd"

func main() {
	cmd.Execute()
}

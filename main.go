package main

import "tryon-chat-backend/cmd"

func main() {
	cmd.Run()
}

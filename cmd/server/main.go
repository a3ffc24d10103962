package main

import "github.com/talhaxhahid/ChildCompass-Backend/server"

func main() {
	server.Main()
}

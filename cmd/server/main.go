package main

import "todohub/internal/app"

func main() {
	app.Run()
}

package main

import "conference-backend/internal/app"

func main() {
	app.Run()
}

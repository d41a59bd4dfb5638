package main

import "github.com/Lorient94/GimnasioAdmin/internal/app"

func main() {
	app.Run()
}

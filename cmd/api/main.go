package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/sefazor/storycredits/internal/app"
	"go.uber.org/fx"
)

func main() {
	// .env is optional; deployments set the environment directly
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	fx.New(
		app.EventLogger,
		app.Core,
		app.Payments,
		app.HTTP,
	).Run()
}

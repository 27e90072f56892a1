package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"crewpager/internal/app"
	"crewpager/internal/console"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()
	if env := os.Getenv("CREWPAGER_CONFIG"); env != "" && !flagPassed("config") {
		cfgPath = env
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	ui := console.New(a, os.Stdin, os.Stdout, a.Logger())
	if err := ui.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Println("console:", err)
	}
	cancel()

	_ = a.Stop(context.Background())
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

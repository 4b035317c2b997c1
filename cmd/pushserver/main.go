package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pushfan/internal/app"
)

func main() {
	var (
		cfgPath string
		db      string
		port    int
		debug   bool
	)
	flag.StringVar(&cfgPath, "config", "", "path to config (yaml/json); default ./push_server.yaml if present")
	flag.StringVar(&db, "db", "", "subscriber database path (overrides storage.path)")
	flag.IntVar(&port, "port", 0, "port to listen on (default 8200)")
	flag.IntVar(&port, "p", 0, "port to listen on (shorthand)")
	flag.BoolVar(&debug, "debug", false, "debug logging")
	flag.BoolVar(&debug, "d", false, "debug logging (shorthand)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: cfgPath, Debug: debug, DBPath: db, Port: port})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	err = a.Serve(ctx)
	_ = a.Close()
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

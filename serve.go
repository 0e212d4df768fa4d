package main

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"facerank/internal/back"
	"facerank/internal/web"

	"github.com/spf13/cobra"
)

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	b, err := back.New(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	signaled := make(chan os.Signal, 1)
	signal.Notify(signaled, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	done := make(chan struct{})
	server := web.NewServer(b)
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.Run(done)
	}()
	go func() {
		defer wg.Done()
		server.Serve(done)
	}()

	sig := <-signaled
	log.Printf("info: received signal %d", sig)

	close(done)
	wg.Wait()

	log.Print("info: shutdown complete")

	return nil
}

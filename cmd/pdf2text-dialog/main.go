// cmd/pdf2text-dialog/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-ocr/internal/cli"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.ExecuteDialog(ctx, os.Args[1:], cli.IO{Stdout: os.Stdout, Stderr: os.Stderr, Exit: os.Exit})
	stop()
	os.Exit(code)
}

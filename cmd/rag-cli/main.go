package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/upb/secure-rag/app"
	"github.com/upb/secure-rag/config"
	"github.com/upb/secure-rag/internal/observability"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()

	qc := cfg.QueryContext()
	fmt.Printf("secure-rag interactive session (tenant=%s role=%s profile=%s)\n",
		qc.Tenant, qc.Role, qc.Profile)
	fmt.Println(`Type a question, or "exit" to quit.`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		answer, err := deps.QueryService.Answer(ctx, qc, line)
		if err != nil {
			fmt.Printf("error: %v\n\n", err)
			continue
		}

		if answer.Notice != "" {
			fmt.Printf("[notice] %s\n", answer.Notice)
		}
		fmt.Println(answer.Text)
		if len(answer.Sources) > 0 {
			fmt.Printf("sources: %s\n", strings.Join(answer.Sources, ", "))
		}
		if answer.Restricted {
			fmt.Println("(access to retrieved documents could not be verified)")
		}
		if answer.CacheHit {
			fmt.Println("(cached)")
		}
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("stdin read failed", zap.Error(err))
	}
	fmt.Println("bye")
}

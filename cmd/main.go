package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/forest-guardian/burn-severity-cli/internal/delivery"
	"github.com/forest-guardian/burn-severity-cli/internal/logging"
	"github.com/forest-guardian/burn-severity-cli/internal/notification"
	"github.com/forest-guardian/burn-severity-cli/internal/properties"
	"github.com/forest-guardian/burn-severity-cli/internal/ui"
)

func printBanner() {
	figure1 := figure.NewFigure("Burn", "isometric1", true)
	figure2 := figure.NewFigure("Severity", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

// stageArg returns the value of --stage=X or --stage X, if present.
func stageArg(args []string) string {
	for i, arg := range args {
		if strings.HasPrefix(arg, "--stage=") {
			return strings.TrimPrefix(arg, "--stage=")
		} else if arg == "--stage" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup always runs before exiting.
func run(args []string) (code int) {
	if err := godotenv.Load("../../.env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			if err := godotenv.Load(); err != nil {
				fmt.Printf("\033[33mNo .env file found, using the environment only\033[0m\n")
			}
		}
	}

	cfg, err := properties.Load()
	if err != nil {
		fmt.Printf("\033[31mInvalid configuration: %s\033[0m\n", err.Error())
		return 1
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("\n\033[31mPANIC: %v\033[0m\n", r)
			fmt.Printf("\033[31mExiting...\033[0m\n")
			msg := fmt.Sprintf("Burn severity CLI panic:\n\n%v\n\nStack trace:\n%s", r, debug.Stack())
			if err := notification.NewDiscord(cfg.DiscordErrorURL, cfg.DiscordSuccessURL).SendErrorNotification(msg); err != nil {
				slog.Error("failed to send notification", "error", err)
			}
			code = 2
		}
	}()

	p, err := delivery.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up pipeline", "error", err)
		return 1
	}

	if stage := stageArg(args); stage != "" {
		p.Quiet = true
		if err := p.Run(ctx, stage); err != nil {
			slog.Error("stage failed", "stage", stage, "error", err)
			return 1
		}
		return 0
	}

	printBanner()
	ui.ShowMenu(ctx, p)
	return 0
}

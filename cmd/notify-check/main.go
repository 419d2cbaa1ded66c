// Command notify-check sends a single message through the configured Lark
// app so credentials and chat membership can be verified without running
// the service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/config"
	"github.com/garyjia/proposal-review/internal/infrastructure/external/lark"
	"github.com/garyjia/proposal-review/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	email := flag.String("email", "", "send an email-style post to this address instead of the chat")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Lark.AppID == "" || cfg.Lark.AppSecret == "" {
		fmt.Fprintln(os.Stderr, "lark.app_id and lark.app_secret must be set")
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{Level: "debug", OutputPath: "stdout", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client := lark.NewSDKClient(lark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		BaseURL:   cfg.Lark.BaseURL,
	}, logger)
	messenger := lark.NewMessenger(client, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stamp := time.Now().Format(time.RFC3339)
	switch {
	case *email != "":
		err = messenger.SendPost(ctx, lark.ReceiveIDEmail, *email, "Proposal review notification check",
			[]string{"If you can read this, email posts are configured.", "Sent at " + stamp})
	case cfg.Notification.ChatID != "":
		err = messenger.SendText(ctx, lark.ReceiveIDChat, cfg.Notification.ChatID,
			"Proposal review notification check, sent at "+stamp)
	default:
		fmt.Fprintln(os.Stderr, "set notification.chat_id or pass -email")
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Notification check failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Notification check sent", zap.String("app_id", client.GetAppID()))
}

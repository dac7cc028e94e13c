package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shrutibot/internal/config"
	"shrutibot/internal/telegram"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Verify the bot token and print the bot identity",
	Long: "Calls getMe with the configured token and prints the bot's identity,\n" +
		"plus the steps for discovering user ids to fill the identity map.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWhoami(cmd.Context())
	},
}

func runWhoami(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	client, err := telegram.NewClient(cfg.TelegramToken)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	identity, err := client.GetMe(callCtx)
	if err != nil {
		return fmt.Errorf("getMe failed: %w", err)
	}

	fmt.Printf("Bot: @%s (ID: %d)\n", identity.Username, identity.ID)
	fmt.Printf("Name: %s\n\n", identity.FirstName)
	fmt.Println("The token works. To fill the identity map:")
	fmt.Println("  1. Add the bot to your group")
	fmt.Println("  2. Send /whoami in the group")
	fmt.Println("  3. The bot replies with your user id and username")
	fmt.Printf("  4. Add the entries to %s\n", cfg.UsersFile)
	return nil
}

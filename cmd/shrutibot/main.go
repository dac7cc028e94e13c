// Package main provides the entry point for the Shruti Telegram bot.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shrutibot",
	Short: "Shruti, a persona-driven Telegram chat bot",
	Long: "Shruti is a webhook-driven Telegram bot that answers group and private\n" +
		"messages with a persona-conditioned LLM reply, backed by bounded\n" +
		"conversational history.",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agribusiness-pro/apiserver/internal/mq"
	"github.com/agribusiness-pro/apiserver/types"
)

// mailerCmd consumes verification events and renders the verification link.
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Process queued verification emails",
	Long: `Subscribes to the user.verification channel and renders a verification
link for each new or resent registration. Delivery is logged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open message queue: %w", err)
		}
		defer queue.Close()

		log := logger.Named("mailer")
		log.Info("waiting for verification events", zap.String("channel", mq.ChannelVerification))
		err = queue.Subscribe(ctx, mq.ChannelVerification, verificationHandler(cfg.Auth.VerifyURL, log))
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}

func verificationHandler(verifyURL string, log *zap.Logger) mq.Handler {
	return func(_ context.Context, msg mq.Message) error {
		var event types.VerificationEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			// redelivery will not fix a malformed payload
			log.Error("dropping malformed verification event", zap.String("message_id", msg.ID), zap.Error(err))
			return nil
		}

		link, err := verificationLink(verifyURL, event.Token)
		if err != nil {
			return err
		}
		log.Info("verification email",
			zap.Int("user_id", event.UserID),
			zap.String("to", event.Email),
			zap.String("subject", "Verify your AgriBusiness Pro account"),
			zap.String("greeting", "Hi "+event.FirstName+","),
			zap.String("link", link))
		return nil
	}
}

func verificationLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid EMAIL_VERIFY_URL: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

package services

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go/v7"
)

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

// PubNubNotifier publishes fulfillment updates the storefront listens to.
type PubNubNotifier struct {
	pn *pubnub.PubNub
}

func NewPubNubNotifier(cfg PubNubConfig) *PubNubNotifier {
	userID := cfg.UserID
	if userID == "" {
		userID = "ticketing-server"
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	return &PubNubNotifier{pn: pubnub.NewPubNub(pnCfg)}
}

func (n *PubNubNotifier) Publish(ctx context.Context, channel string, message map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, st, err := n.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("publish to %s (status %d): %w", channel, st.StatusCode, err)
	}
	return nil
}

// NoopNotifier is used when PubNub keys are not configured.
type NoopNotifier struct{}

func (NoopNotifier) Publish(ctx context.Context, channel string, message map[string]any) error {
	return nil
}

package push

import (
	"context"
	"fmt"
	"log"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNSClient sends iOS push notifications via Apple Push Notification
// service using token-based auth
type APNSClient struct {
	client   *apns2.Client
	bundleID string
}

func NewAPNSClient(keyPath, keyID, teamID, bundleID string, production bool) (*APNSClient, error) {
	authKey, err := token.AuthKeyFromFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	t := &token.Token{
		AuthKey: authKey,
		KeyID:   keyID,
		TeamID:  teamID,
	}

	client := apns2.NewTokenClient(t)
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	log.Println("[APNs] Client initialized successfully")
	return &APNSClient{client: client, bundleID: bundleID}, nil
}

func (c *APNSClient) Send(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	p := payload.NewPayload().AlertTitle(title).AlertBody(body)
	for k, v := range data {
		p = p.Custom(k, v)
	}

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       c.bundleID,
		Payload:     p,
	}

	res, err := c.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to send APNs notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("APNs rejected notification: %d %s", res.StatusCode, res.Reason)
	}

	return nil
}

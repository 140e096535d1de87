package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/stocksync/internal/client/storage"
)

// runLogin начинает сессию. Без withToken токен выдает сервер,
// иначе токен вводится пользователем.
func (c *Cli) runLogin(ctx context.Context, userID string, withToken bool, ttl time.Duration) error {
	c.io.Println("=== Login ===")

	if userID == "" {
		input, err := c.io.ReadInput("User ID: ")
		if err != nil {
			return fmt.Errorf("failed to read user id: %w", err)
		}
		userID = strings.TrimSpace(input)
	}

	var (
		auth *storage.AuthData
		err  error
	)
	if withToken {
		token, readErr := c.io.ReadSecret("Access token: ")
		if readErr != nil {
			return fmt.Errorf("failed to read token: %w", readErr)
		}
		var expiresAt time.Time
		if ttl > 0 {
			expiresAt = c.now().Add(ttl)
		}
		auth, err = c.session.LoginWithToken(ctx, userID, strings.TrimSpace(token), expiresAt)
	} else {
		auth, err = c.session.Login(ctx, userID)
	}
	if errors.Is(err, storage.ErrForeignData) {
		return fmt.Errorf("%w: sync or cancel them before switching user", err)
	}
	if err != nil {
		return err
	}

	c.io.Println("✓ Logged in")
	c.io.Printf("User:   %s\n", auth.UserID)
	c.io.Printf("Server: %s\n", auth.ServerURL)
	if auth.ExpiresAt > 0 {
		c.io.Printf("Expires: %s\n", formatTime(time.Unix(auth.ExpiresAt, 0)))
	}
	return nil
}

// runLogout завершает сессию. Очередь операций сохраняется.
func (c *Cli) runLogout(ctx context.Context) error {
	if _, err := c.session.Current(ctx); err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			c.io.Println("Not logged in")
			return nil
		}
		return fmt.Errorf("failed to read session: %w", err)
	}
	if err := c.session.Logout(ctx); err != nil {
		return err
	}
	c.io.Println("✓ Logged out")
	return nil
}

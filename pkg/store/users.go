package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"chatsync/pkg/errs"
	"chatsync/pkg/models"
)

// GetUser returns a user profile or ErrUserNotFound.
func GetUser(uid string) (models.User, error) {
	v, err := getKey(UserKey(uid))
	if errors.Is(err, pebble.ErrNotFound) {
		return models.User{}, errs.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	var u models.User
	if err := json.Unmarshal(v, &u); err != nil {
		return models.User{}, fmt.Errorf("invalid user JSON: %w", err)
	}
	return u, nil
}

// SaveUser writes a user profile record.
func SaveUser(ctx context.Context, u models.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return setSync(ctx, UserKey(u.UID), data)
}

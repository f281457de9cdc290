package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"videogen/internal/domain"
	"videogen/internal/infra"
	"videogen/internal/sqlinline"
)

const (
	ProviderRunway = "runway"
)

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the integration_tokens table when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QEnsureIntegrationTokensSchema); err != nil {
		return fmt.Errorf("credentials: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) RunwayAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderRunway)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetRunwayAPIKey(ctx context.Context, key string, props map[string]any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("runway api key is required")
	}
	return s.upsert(ctx, ProviderRunway, key, props)
}

// DeleteRunwayAPIKey removes the stored key so workers fall back to
// RUNWAY_API_KEY. It returns domain.ErrNotFound when no key was stored.
func (s *Store) DeleteRunwayAPIKey(ctx context.Context) error {
	tag, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, ProviderRunway)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

// ResolveRunwayAPIKey returns the stored key, falling back to envKey. A nil
// store consults only the environment. An absent key is a *domain.ConfigError.
func ResolveRunwayAPIKey(ctx context.Context, store *Store, envKey string) (string, error) {
	var storeErr error
	if store != nil {
		key, err := store.RunwayAPIKey(ctx)
		if err == nil && key != "" {
			return key, nil
		}
		storeErr = err
	}
	if key := strings.TrimSpace(envKey); key != "" {
		return key, nil
	}
	reason := "not found in integration_tokens or RUNWAY_API_KEY"
	if storeErr != nil {
		reason = "store lookup failed (" + storeErr.Error() + ") and RUNWAY_API_KEY is empty"
	}
	return "", &domain.ConfigError{Key: "RUNWAY_API_KEY", Reason: reason}
}

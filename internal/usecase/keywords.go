package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"yessir/internal/domain"
)

var ErrInvalidKeyword = errors.New("keyword and address are required")

// LoadKeywords replaces the alias table with the backend's. Aliasing is an
// optional enhancement, so failures are logged and never retained.
func (c *LocalCache) LoadKeywords(ctx context.Context) error {
	aliases, err := c.keywords.ListKeywords(ctx)
	if err != nil {
		c.logger.Warn("failed to load keywords", zap.Error(err))
		return fmt.Errorf("load keywords: %w", err)
	}

	normalized := make(map[string]string, len(aliases))
	for key, value := range aliases {
		if alias := normalizeAlias(key); alias != "" {
			normalized[alias] = value
		}
	}

	c.mu.Lock()
	c.aliases = normalized
	c.mu.Unlock()

	c.publish()
	return nil
}

// AddKeyword saves an alias and applies it locally once the backend accepts it.
func (c *LocalCache) AddKeyword(ctx context.Context, key string, value string) error {
	alias := normalizeAlias(key)
	value = strings.TrimSpace(value)
	if alias == "" || value == "" {
		return ErrInvalidKeyword
	}

	result, err := c.keywords.SaveKeyword(ctx, strings.TrimSpace(key), value)
	if err == nil && result.Failed() {
		err = rejection(strings.TrimSpace(result.Error+" "+result.Details), "keyword was not saved")
	}
	if err != nil {
		c.logger.Error("failed to save keyword", zap.String("keyword", alias), zap.Error(err))
		c.retain(domain.ListError{
			Category: domain.ErrorCategoryMutation,
			Kind:     domain.KindKeyword,
			Message:  fmt.Sprintf("Failed to save keyword: %v", err),
		})
		c.publish()
		return fmt.Errorf("save keyword %q: %w", alias, err)
	}

	c.mu.Lock()
	c.aliases[alias] = value
	c.mu.Unlock()

	c.publish()
	return nil
}

// DeleteKeyword removes an alias once the backend confirms the delete.
func (c *LocalCache) DeleteKeyword(ctx context.Context, key string) error {
	alias := normalizeAlias(key)
	if alias == "" {
		return ErrInvalidKeyword
	}

	result, err := c.keywords.DeleteKeyword(ctx, strings.TrimSpace(key))
	if err == nil && !result.Success {
		err = rejection(result.Message, "delete was not confirmed")
	}
	if err != nil {
		c.logger.Error("failed to delete keyword", zap.String("keyword", alias), zap.Error(err))
		c.retain(domain.ListError{
			Category: domain.ErrorCategoryMutation,
			Kind:     domain.KindKeyword,
			Message:  fmt.Sprintf("Failed to delete keyword: %v", err),
		})
		c.publish()
		return fmt.Errorf("delete keyword %q: %w", alias, err)
	}

	c.mu.Lock()
	delete(c.aliases, alias)
	c.mu.Unlock()

	c.publish()
	return nil
}

// Keywords returns a copy of the alias table.
func (c *LocalCache) Keywords() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.aliases))
	for key, value := range c.aliases {
		out[key] = value
	}
	return out
}

// Resolve maps a spoken destination through the alias table. Unknown input is
// returned unchanged.
func (c *LocalCache) Resolve(spoken string) string {
	alias := normalizeAlias(spoken)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if target, ok := c.aliases[alias]; ok {
		return target
	}
	return spoken
}

func normalizeAlias(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

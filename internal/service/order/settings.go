package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/validation"
)

// GetSettings возвращает настройки магазина, а до первого сохранения значения по умолчанию.
func (s *Service) GetSettings(ctx context.Context) (domain.StoreSettings, error) {
	settings, err := s.store.GetSettings(ctx)
	if errors.Is(err, domain.ErrSettingsNotFound) {
		return domain.StoreSettings{StoreName: domain.DefaultStoreName}, nil
	}
	if err != nil {
		return domain.StoreSettings{}, err
	}
	return settings, nil
}

// UpdateSettings полностью заменяет настройки магазина.
func (s *Service) UpdateSettings(ctx context.Context, actor domain.ActorContext, in domain.StoreSettings) (domain.StoreSettings, error) {
	started := time.Now()
	settings, err := s.updateSettings(ctx, actor, in)
	s.observe(opUpdateSettings, started, err)
	return settings, err
}

func (s *Service) updateSettings(ctx context.Context, actor domain.ActorContext, in domain.StoreSettings) (domain.StoreSettings, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.StoreSettings{}, err
	}
	if err := validation.Struct(in); err != nil {
		return domain.StoreSettings{}, err
	}

	now := s.now()
	in.UpdatedAt = now
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		before, readErr := tx.GetSettings(ctx)
		if readErr != nil && !errors.Is(readErr, domain.ErrSettingsNotFound) {
			return fmt.Errorf("read settings: %w", readErr)
		}

		if err := tx.PutSettings(ctx, in); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}

		entry := domain.AuditEntry{
			ID:        uuid.NewString(),
			Actor:     actor.Actor,
			Action:    domain.AuditSettingsUpdated,
			Target:    domain.AuditTarget{Type: domain.AuditTargetSettings, ID: "store"},
			After:     map[string]any{"storeName": in.StoreName},
			Meta:      actor.Meta(),
			CreatedAt: now,
		}
		if readErr == nil {
			entry.Before = map[string]any{"storeName": before.StoreName}
		}
		return tx.AppendAudit(ctx, entry)
	})
	if err != nil {
		return domain.StoreSettings{}, err
	}
	return in, nil
}

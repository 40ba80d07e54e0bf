package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrDuplicateEntitlementName  = errors.New("core: entitlement name already in use")
	ErrDuplicateEntitlementAsset = errors.New("core: gamepass already backs another entitlement")
)

type DefineEntitlementRequest struct {
	Name        string
	AssetID     int64
	Description string
	InviteURL   string
}

func (s *Service) DefineEntitlement(ctx context.Context, req DefineEntitlementRequest) (definition EntitlementDefinition, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"name":     req.Name,
		"asset_id": req.AssetID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "define_entitlement", err, fields)
	}()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		err = s.mapError(fmt.Errorf("core: entitlement name is required"))
		return EntitlementDefinition{}, err
	}
	if req.AssetID <= 0 {
		err = s.mapError(fmt.Errorf("core: asset id is required"))
		return EntitlementDefinition{}, err
	}
	if s.entitlementStore == nil {
		err = s.mapError(fmt.Errorf("core: entitlement store is not configured"))
		return EntitlementDefinition{}, err
	}

	if _, getErr := s.entitlementStore.GetByName(ctx, name); getErr == nil {
		err = s.mapError(fmt.Errorf("%w: %s", ErrDuplicateEntitlementName, name))
		return EntitlementDefinition{}, err
	} else if !errors.Is(getErr, ErrEntitlementNotFound) {
		err = s.mapError(getErr)
		return EntitlementDefinition{}, err
	}
	if _, getErr := s.entitlementStore.GetByAssetID(ctx, req.AssetID); getErr == nil {
		err = s.mapError(fmt.Errorf("%w: asset %d", ErrDuplicateEntitlementAsset, req.AssetID))
		return EntitlementDefinition{}, err
	} else if !errors.Is(getErr, ErrEntitlementNotFound) {
		err = s.mapError(getErr)
		return EntitlementDefinition{}, err
	}

	// Price is read from the gamepass listing so the catalog cannot
	// drift from what the storefront actually charges.
	var price int64
	if s.assetCatalog != nil {
		info, catalogErr := s.assetCatalog.AssetInfo(ctx, req.AssetID)
		if catalogErr != nil {
			err = s.mapError(catalogErr)
			return EntitlementDefinition{}, err
		}
		price = info.PriceRobux
	}

	definition, err = s.entitlementStore.Create(ctx, DefineEntitlementInput{
		Name:        name,
		AssetID:     req.AssetID,
		Description: strings.TrimSpace(req.Description),
		InviteURL:   strings.TrimSpace(req.InviteURL),
		PriceRobux:  price,
	})
	if err != nil {
		err = s.mapError(err)
		return EntitlementDefinition{}, err
	}
	return definition, nil
}

func (s *Service) ListEntitlements(ctx context.Context) ([]EntitlementDefinition, error) {
	if s == nil || s.entitlementStore == nil {
		return nil, fmt.Errorf("core: entitlement store is not configured")
	}
	definitions, err := s.entitlementStore.List(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return definitions, nil
}

func (s *Service) GetEntitlement(ctx context.Context, name string) (EntitlementDefinition, error) {
	if s == nil || s.entitlementStore == nil {
		return EntitlementDefinition{}, fmt.Errorf("core: entitlement store is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return EntitlementDefinition{}, s.mapError(fmt.Errorf("core: entitlement name is required"))
	}
	definition, err := s.entitlementStore.GetByName(ctx, name)
	if err != nil {
		return EntitlementDefinition{}, s.mapError(err)
	}
	return definition, nil
}

func (s *Service) RemoveEntitlement(ctx context.Context, name string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"name": name,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "remove_entitlement", err, fields)
	}()

	name = strings.TrimSpace(name)
	if name == "" {
		err = s.mapError(fmt.Errorf("core: entitlement name is required"))
		return err
	}
	if s.entitlementStore == nil {
		err = s.mapError(fmt.Errorf("core: entitlement store is not configured"))
		return err
	}
	definition, getErr := s.entitlementStore.GetByName(ctx, name)
	if getErr != nil {
		err = s.mapError(getErr)
		return err
	}
	if deleteErr := s.entitlementStore.Delete(ctx, definition.ID); deleteErr != nil {
		err = s.mapError(deleteErr)
		return err
	}
	return nil
}

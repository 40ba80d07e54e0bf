package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrCodeNotVisible   = errors.New("core: verification code not found in profile")
	ErrInventoryPrivate = errors.New("core: roblox inventory is private")
)

// ConfirmLinkRequest carries the member's claim of which Roblox
// account they control. The claim is resolved here, not at BeginLink,
// so the stored binding only ever reflects a confirmed identity.
type ConfirmLinkRequest struct {
	MemberID       string
	RobloxUsername string
}

// LinkChallenge is handed back to the member after BeginLink or
// Reverify. The member proves control of the Roblox account by putting
// VerificationCode in that account's profile description.
type LinkChallenge struct {
	Account          LinkedAccount
	VerificationCode string
}

// BeginLink issues a verification challenge. It records no external
// identity; the member names the Roblox account at confirmation time.
func (s *Service) BeginLink(ctx context.Context, memberID string) (challenge LinkChallenge, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"member_id": memberID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "begin_link", err, fields)
	}()

	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		err = s.mapError(fmt.Errorf("core: member id is required"))
		return LinkChallenge{}, err
	}
	if s.linkedAccountStore == nil {
		err = s.mapError(fmt.Errorf("core: linked account store is not configured"))
		return LinkChallenge{}, err
	}

	code, codeErr := s.generateVerificationCode()
	if codeErr != nil {
		err = s.mapError(codeErr)
		return LinkChallenge{}, err
	}

	now := s.now()
	account, getErr := s.linkedAccountStore.GetByMember(ctx, memberID)
	switch {
	case getErr == nil:
		if account.IsLinked() {
			err = s.mapError(fmt.Errorf("%w: member %s", ErrAlreadyLinked, memberID))
			return LinkChallenge{}, err
		}
		// A repeat BeginLink replaces the outstanding challenge: the
		// latest code is the only one ConfirmLink will accept.
		if transitionErr := account.TransitionTo(LinkStatePendingConfirmation, now); transitionErr != nil {
			err = s.mapError(transitionErr)
			return LinkChallenge{}, err
		}
		account.VerificationCode = code
		account, err = s.linkedAccountStore.Save(ctx, account)
		if err != nil {
			err = s.mapError(err)
			return LinkChallenge{}, err
		}
	case errors.Is(getErr, ErrAccountNotFound):
		account, err = s.linkedAccountStore.Create(ctx, CreateLinkedAccountInput{
			MemberID:         memberID,
			State:            LinkStatePendingConfirmation,
			VerificationCode: code,
		})
		if err != nil {
			err = s.mapError(err)
			return LinkChallenge{}, err
		}
	default:
		err = s.mapError(getErr)
		return LinkChallenge{}, err
	}

	return LinkChallenge{Account: account, VerificationCode: code}, nil
}

// ConfirmLink resolves the member's username claim, checks that the
// account's inventory is publicly inspectable, and scans the profile
// description for the outstanding code. Only a successful confirmation
// stores the external identity.
func (s *Service) ConfirmLink(ctx context.Context, req ConfirmLinkRequest) (account LinkedAccount, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"member_id":       req.MemberID,
		"roblox_username": req.RobloxUsername,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "confirm_link", err, fields)
	}()

	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		err = s.mapError(fmt.Errorf("core: member id is required"))
		return LinkedAccount{}, err
	}
	username := strings.TrimSpace(req.RobloxUsername)
	if username == "" {
		err = s.mapError(fmt.Errorf("core: roblox username is required"))
		return LinkedAccount{}, err
	}
	if s.linkedAccountStore == nil {
		err = s.mapError(fmt.Errorf("core: linked account store is not configured"))
		return LinkedAccount{}, err
	}
	if s.accountResolver == nil {
		err = s.mapError(fmt.Errorf("core: account resolver is not configured"))
		return LinkedAccount{}, err
	}
	if s.profileScanner == nil {
		err = s.mapError(fmt.Errorf("core: profile scanner is not configured"))
		return LinkedAccount{}, err
	}
	if s.ownershipOracle == nil {
		err = s.mapError(fmt.Errorf("core: ownership oracle is not configured"))
		return LinkedAccount{}, err
	}

	account, getErr := s.linkedAccountStore.GetByMember(ctx, memberID)
	if getErr != nil {
		if errors.Is(getErr, ErrAccountNotFound) {
			err = s.mapError(fmt.Errorf("%w: member %s", ErrLinkNotStarted, memberID))
			return LinkedAccount{}, err
		}
		err = s.mapError(getErr)
		return LinkedAccount{}, err
	}
	if account.State != LinkStatePendingConfirmation {
		err = s.mapError(fmt.Errorf("%w: member %s", ErrLinkNotStarted, memberID))
		return LinkedAccount{}, err
	}

	external, resolveErr := s.accountResolver.ResolveUsername(ctx, username)
	if resolveErr != nil {
		err = s.mapError(resolveErr)
		return LinkedAccount{}, err
	}
	fields["roblox_user_id"] = external.RobloxUserID

	// A hidden inventory would blind every later ownership probe, so the
	// link is refused up front. The challenge survives; the member opens
	// their inventory and confirms again with the same code.
	inspectable, inspectErr := s.ownershipOracle.InventoryInspectable(ctx, external.RobloxUserID)
	if inspectErr != nil {
		err = s.mapError(Retriable(inspectErr))
		return LinkedAccount{}, err
	}
	if !inspectable {
		err = s.mapError(Retriable(fmt.Errorf("%w: user %d", ErrInventoryPrivate, external.RobloxUserID)))
		return LinkedAccount{}, err
	}

	description, scanErr := s.profileScanner.ProfileDescription(ctx, external.RobloxUserID)
	if scanErr != nil {
		err = s.mapError(scanErr)
		return LinkedAccount{}, err
	}
	if !strings.Contains(description, account.VerificationCode) {
		// The account stays pending; the member can fix the profile and
		// confirm again with the same code.
		err = s.mapError(fmt.Errorf("%w: member %s", ErrCodeNotVisible, memberID))
		return LinkedAccount{}, err
	}

	account.RobloxUserID = external.RobloxUserID
	account.RobloxUsername = external.RobloxUsername
	if transitionErr := account.TransitionTo(LinkStateLinked, s.now()); transitionErr != nil {
		err = s.mapError(transitionErr)
		return LinkedAccount{}, err
	}
	account, err = s.linkedAccountStore.Save(ctx, account)
	if err != nil {
		err = s.mapError(err)
		return LinkedAccount{}, err
	}
	return account, nil
}

// Reverify forces an existing record back through confirmation with a
// fresh code, whatever state it is in, e.g. after a suspected account
// transfer or to replace a stalled challenge.
func (s *Service) Reverify(ctx context.Context, memberID string) (challenge LinkChallenge, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"member_id": memberID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "reverify", err, fields)
	}()

	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		err = s.mapError(fmt.Errorf("core: member id is required"))
		return LinkChallenge{}, err
	}
	if s.linkedAccountStore == nil {
		err = s.mapError(fmt.Errorf("core: linked account store is not configured"))
		return LinkChallenge{}, err
	}

	account, getErr := s.linkedAccountStore.GetByMember(ctx, memberID)
	if getErr != nil {
		if errors.Is(getErr, ErrAccountNotFound) {
			err = s.mapError(fmt.Errorf("%w: member %s", ErrNotLinked, memberID))
			return LinkChallenge{}, err
		}
		err = s.mapError(getErr)
		return LinkChallenge{}, err
	}
	fields["roblox_user_id"] = account.RobloxUserID

	code, codeErr := s.generateVerificationCode()
	if codeErr != nil {
		err = s.mapError(codeErr)
		return LinkChallenge{}, err
	}
	if transitionErr := account.TransitionTo(LinkStatePendingConfirmation, s.now()); transitionErr != nil {
		err = s.mapError(transitionErr)
		return LinkChallenge{}, err
	}
	account.VerificationCode = code
	account, err = s.linkedAccountStore.Save(ctx, account)
	if err != nil {
		err = s.mapError(err)
		return LinkChallenge{}, err
	}
	return LinkChallenge{Account: account, VerificationCode: code}, nil
}

func (s *Service) Unlink(ctx context.Context, memberID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"member_id": memberID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "unlink", err, fields)
	}()

	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		err = s.mapError(fmt.Errorf("core: member id is required"))
		return err
	}
	if s.linkedAccountStore == nil {
		err = s.mapError(fmt.Errorf("core: linked account store is not configured"))
		return err
	}

	account, getErr := s.linkedAccountStore.GetByMember(ctx, memberID)
	if getErr != nil {
		if errors.Is(getErr, ErrAccountNotFound) {
			err = s.mapError(fmt.Errorf("%w: member %s", ErrNotLinked, memberID))
			return err
		}
		err = s.mapError(getErr)
		return err
	}
	if deleteErr := s.linkedAccountStore.Delete(ctx, account.ID); deleteErr != nil {
		err = s.mapError(deleteErr)
		return err
	}
	return nil
}

func (s *Service) GetLinkedAccount(ctx context.Context, memberID string) (LinkedAccount, error) {
	if s == nil || s.linkedAccountStore == nil {
		return LinkedAccount{}, fmt.Errorf("core: linked account store is not configured")
	}
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return LinkedAccount{}, s.mapError(fmt.Errorf("core: member id is required"))
	}
	account, err := s.linkedAccountStore.GetByMember(ctx, memberID)
	if err != nil {
		return LinkedAccount{}, s.mapError(err)
	}
	return account, nil
}

func (s *Service) generateVerificationCode() (string, error) {
	if s == nil || s.tokenGenerator == nil {
		return "", fmt.Errorf("core: token generator is not configured")
	}
	return s.tokenGenerator.VerificationCode()
}

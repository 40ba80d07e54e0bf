package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestStorefrontErrorMapperCategories(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		category goerrors.Category
		textCode string
		code     int
	}{
		{
			name:     "not linked",
			err:      fmt.Errorf("%w: member m1", ErrNotLinked),
			category: goerrors.CategoryOperation,
			textCode: StorefrontErrorNotLinked,
			code:     http.StatusInternalServerError,
		},
		{
			name:     "already linked",
			err:      fmt.Errorf("%w: member m1", ErrAlreadyLinked),
			category: goerrors.CategoryConflict,
			textCode: StorefrontErrorAlreadyLinked,
			code:     http.StatusConflict,
		},
		{
			name:     "link not started",
			err:      fmt.Errorf("%w: member m1", ErrLinkNotStarted),
			category: goerrors.CategoryOperation,
			textCode: StorefrontErrorLinkNotStarted,
			code:     http.StatusInternalServerError,
		},
		{
			name:     "entitlement missing",
			err:      fmt.Errorf("%w: vip", ErrEntitlementNotFound),
			category: goerrors.CategoryNotFound,
			textCode: StorefrontErrorEntitlementNotFound,
			code:     http.StatusNotFound,
		},
		{
			name:     "duplicate name",
			err:      fmt.Errorf("%w: vip", ErrDuplicateEntitlementName),
			category: goerrors.CategoryConflict,
			textCode: StorefrontErrorDuplicateName,
			code:     http.StatusConflict,
		},
		{
			name:     "code not visible",
			err:      fmt.Errorf("%w: member m1", ErrCodeNotVisible),
			category: goerrors.CategoryOperation,
			textCode: StorefrontErrorCodeNotVisible,
			code:     http.StatusInternalServerError,
		},
		{
			name:     "inventory private",
			err:      fmt.Errorf("%w: user 156", ErrInventoryPrivate),
			category: goerrors.CategoryAuthz,
			textCode: StorefrontErrorInventoryPrivate,
			code:     http.StatusForbidden,
		},
		{
			name:     "not owned",
			err:      fmt.Errorf("%w: asset 42", ErrNotOwnedYet),
			category: goerrors.CategoryOperation,
			textCode: StorefrontErrorNotOwned,
			code:     http.StatusInternalServerError,
		},
		{
			name:     "oracle outage",
			err:      ErrOracleInconclusive,
			category: goerrors.CategoryOperation,
			textCode: StorefrontErrorOracleUnavailable,
			code:     http.StatusInternalServerError,
		},
		{
			name:     "bad input",
			err:      errors.New("core: member id is required"),
			category: goerrors.CategoryBadInput,
			textCode: StorefrontErrorBadInput,
			code:     http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := storefrontErrorMapper(tc.err)
			if mapped == nil {
				t.Fatal("expected mapped error")
			}
			if mapped.Category != tc.category {
				t.Fatalf("expected category %s, got %s", tc.category, mapped.Category)
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected text code %s, got %s", tc.textCode, mapped.TextCode)
			}
			if mapped.Code != tc.code {
				t.Fatalf("expected code %d, got %d", tc.code, mapped.Code)
			}
		})
	}
}

func TestStorefrontErrorMapperPreservesChain(t *testing.T) {
	mapped := storefrontErrorMapper(fmt.Errorf("%w: member m1", ErrAlreadyLinked))
	if !errors.Is(mapped, ErrAlreadyLinked) {
		t.Fatal("expected mapped error to keep the sentinel in its chain")
	}
}

func TestStorefrontErrorMapperPassesRichErrors(t *testing.T) {
	source := goerrors.New("quota exhausted", goerrors.CategoryRateLimit)
	mapped := storefrontErrorMapper(source)
	if mapped.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category preserved, got %s", mapped.Category)
	}
	if mapped.Code != http.StatusTooManyRequests {
		t.Fatalf("expected envelope to fill status, got %d", mapped.Code)
	}
}

func TestRetriableErrors(t *testing.T) {
	if IsRetriable(nil) {
		t.Fatal("nil is not retriable")
	}
	if IsRetriable(errors.New("plain")) {
		t.Fatal("plain errors are not retriable")
	}
	wrapped := Retriable(errors.New("oracle timeout"))
	if !IsRetriable(wrapped) {
		t.Fatal("expected retriable marker to be detected")
	}
	if !IsRetriable(fmt.Errorf("tick: %w", wrapped)) {
		t.Fatal("expected retriable marker to survive wrapping")
	}
	if Retriable(nil) != nil {
		t.Fatal("Retriable(nil) must be nil")
	}
}

package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	StorefrontErrorBadInput                = "STOREFRONT_BAD_INPUT"
	StorefrontErrorNotLinked               = "STOREFRONT_NOT_LINKED"
	StorefrontErrorLinkNotStarted          = "STOREFRONT_LINK_NOT_STARTED"
	StorefrontErrorAlreadyLinked           = "STOREFRONT_ALREADY_LINKED"
	StorefrontErrorEntitlementNotFound     = "STOREFRONT_ENTITLEMENT_NOT_FOUND"
	StorefrontErrorExternalAccountNotFound = "STOREFRONT_EXTERNAL_ACCOUNT_NOT_FOUND"
	StorefrontErrorAssetNotFound           = "STOREFRONT_ASSET_NOT_FOUND"
	StorefrontErrorCodeNotVisible          = "STOREFRONT_CODE_NOT_VISIBLE"
	StorefrontErrorNotOwned                = "STOREFRONT_NOT_OWNED"
	StorefrontErrorIntentNotFound          = "STOREFRONT_INTENT_NOT_FOUND"
	StorefrontErrorDuplicateName           = "STOREFRONT_DUPLICATE_NAME"
	StorefrontErrorDuplicateAsset          = "STOREFRONT_DUPLICATE_ASSET"
	StorefrontErrorDuplicateIntent         = "STOREFRONT_DUPLICATE_INTENT"
	StorefrontErrorOracleUnavailable       = "STOREFRONT_ORACLE_UNAVAILABLE"
	StorefrontErrorInventoryPrivate        = "STOREFRONT_INVENTORY_PRIVATE"
	StorefrontErrorInternal                = "STOREFRONT_INTERNAL_ERROR"
)

func storefrontErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureStorefrontErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "verification code not found"):
		return wrapStorefrontError(err, goerrors.CategoryOperation, StorefrontErrorCodeNotVisible)
	case strings.Contains(msg, "not owned"):
		return wrapStorefrontError(err, goerrors.CategoryOperation, StorefrontErrorNotOwned)
	case strings.Contains(msg, "not linked"):
		return wrapStorefrontError(err, goerrors.CategoryOperation, StorefrontErrorNotLinked)
	case strings.Contains(msg, "no pending link"), strings.Contains(msg, "link not started"):
		return wrapStorefrontError(err, goerrors.CategoryOperation, StorefrontErrorLinkNotStarted)
	case strings.Contains(msg, "already linked"):
		return wrapStorefrontError(err, goerrors.CategoryConflict, StorefrontErrorAlreadyLinked)
	case strings.Contains(msg, "name already in use"):
		return wrapStorefrontError(err, goerrors.CategoryConflict, StorefrontErrorDuplicateName)
	case strings.Contains(msg, "already backs another"):
		return wrapStorefrontError(err, goerrors.CategoryConflict, StorefrontErrorDuplicateAsset)
	case strings.Contains(msg, "intent already open"):
		return wrapStorefrontError(err, goerrors.CategoryConflict, StorefrontErrorDuplicateIntent)
	case strings.Contains(msg, "entitlement") && strings.Contains(msg, "not found"):
		return wrapStorefrontError(err, goerrors.CategoryNotFound, StorefrontErrorEntitlementNotFound)
	case strings.Contains(msg, "no pending purchase intent"), strings.Contains(msg, "intent not found"):
		return wrapStorefrontError(err, goerrors.CategoryNotFound, StorefrontErrorIntentNotFound)
	case strings.Contains(msg, "roblox user") && strings.Contains(msg, "not found"):
		return wrapStorefrontError(err, goerrors.CategoryNotFound, StorefrontErrorExternalAccountNotFound)
	case strings.Contains(msg, "gamepass") && strings.Contains(msg, "not found"):
		return wrapStorefrontError(err, goerrors.CategoryNotFound, StorefrontErrorAssetNotFound)
	case strings.Contains(msg, "inventory") && strings.Contains(msg, "private"):
		return wrapStorefrontError(err, goerrors.CategoryAuthz, StorefrontErrorInventoryPrivate)
	case strings.Contains(msg, "oracle"), strings.Contains(msg, "unavailable"), strings.Contains(msg, "timeout"):
		return wrapStorefrontError(err, goerrors.CategoryOperation, StorefrontErrorOracleUnavailable)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return wrapStorefrontError(err, goerrors.CategoryBadInput, StorefrontErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureStorefrontErrorEnvelope(mapped)
}

func wrapStorefrontError(err error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureStorefrontErrorEnvelope(
		goerrors.Wrap(err, category, err.Error()).
			WithTextCode(textCode),
	)
}

func ensureStorefrontErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = storefrontHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultStorefrontTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultStorefrontTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return StorefrontErrorBadInput
	case goerrors.CategoryNotFound:
		return StorefrontErrorEntitlementNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return StorefrontErrorInventoryPrivate
	case goerrors.CategoryConflict:
		return StorefrontErrorAlreadyLinked
	case goerrors.CategoryOperation:
		return StorefrontErrorOracleUnavailable
	default:
		return StorefrontErrorInternal
	}
}

func storefrontHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// RetriableError marks a failure as transient: the reconciler keeps the
// intent pending and the next tick retries it.
type RetriableError struct {
	Err error
}

func (e *RetriableError) Error() string {
	if e == nil || e.Err == nil {
		return "core: retriable error"
	}
	return e.Err.Error()
}

func (e *RetriableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func Retriable(err error) error {
	if err == nil {
		return nil
	}
	return &RetriableError{Err: err}
}

func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	var retriable *RetriableError
	return errors.As(err, &retriable)
}

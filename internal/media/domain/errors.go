package domain

import "errors"

var (
	ErrMediaNotFound          = errors.New("media_not_found")
	ErrInvalidPrice           = errors.New("invalid_price")
	ErrUnsupportedMediaType   = errors.New("unsupported_media_type")
	ErrInvalidMediaSize       = errors.New("invalid_media_size")
	ErrOwnerNotVerified       = errors.New("owner_not_verified")
	ErrForbidden              = errors.New("media_forbidden")
	ErrRecentViews            = errors.New("media_has_recent_views")
	ErrNotPaidViewer          = errors.New("not_paid_viewer")
	ErrFeedbackAlreadyLeft    = errors.New("feedback_already_left")
	ErrInvalidRating          = errors.New("invalid_rating")
	ErrVersionConflict        = errors.New("media_version_conflict")
	ErrStorageUnavailable     = errors.New("storage_unavailable")
	ErrPreviewGenerationError = errors.New("preview_generation_failed")
)

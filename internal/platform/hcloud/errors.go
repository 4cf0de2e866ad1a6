package hcloud

import (
	"errors"
	"slices"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// isResourceLocked reports errors caused by a running action. They are
// retryable.
func isResourceLocked(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeConflict,
		hcloud.ErrorCodeResourceLocked,
		hcloud.ErrorCodeResourceUnavailable,
	)
}

// isInvalidParameter reports errors that retrying cannot fix.
func isInvalidParameter(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeNotFound,
		hcloud.ErrorCodeInvalidInput,
		hcloud.ErrorCodeInvalidServerType,
		hcloud.ErrorCodeUniquenessError,
	)
}

// isCapacityError reports that a location cannot host more servers of a
// type right now.
func isCapacityError(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeResourceLimitExceeded,
		hcloud.ErrorCodeResourceUnavailable,
		hcloud.ErrorCodePlacementError,
	)
}

func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}
	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		return slices.Contains(codes, hcloudErr.Code)
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeNotFound)
}

// IsCapacityError reports whether err means the requested servers cannot
// be created at the moment.
func IsCapacityError(err error) bool {
	return isCapacityError(err)
}

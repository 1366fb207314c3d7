package service

import (
	"errors"
	"fmt"

	"github.com/polywatch/monitor/internal/domain"
)

// asStoreFailure makes sure a non-conflict store error matches
// domain.ErrStoreFailure, whichever store produced it.
func asStoreFailure(err error) error {
	if err == nil || errors.Is(err, domain.ErrStoreFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
}

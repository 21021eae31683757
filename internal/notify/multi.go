package notify

import (
	"context"
	"errors"

	"github.com/abhisek/gatekeep/internal/assessment"
)

// Multi sends to every sender and joins their errors.
type Multi []assessment.Reporter

func (m Multi) Send(ctx context.Context, s assessment.Session) error {
	var errs []error
	for _, r := range m {
		if err := r.Send(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

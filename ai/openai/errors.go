package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"

	"github.com/poiesic/callscope/core"
)

var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// classifyError maps a langchaingo client error onto the core remote-failure taxonomy.
// The original error stays in the chain for logging.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", core.ErrRemoteTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", core.ErrRemoteTimeout, err)
	}
	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		switch code {
		case 400, 422:
			return fmt.Errorf("%w: %w", core.ErrInvalidInput, err)
		case 408, 504:
			return fmt.Errorf("%w: %w", core.ErrRemoteTimeout, err)
		}
	}
	return fmt.Errorf("%w: %w", core.ErrRemoteUnavailable, err)
}

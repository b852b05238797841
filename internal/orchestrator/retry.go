package orchestrator

import (
	"fmt"
	"strings"
)

// verdict tells the retry driver what to do after an attempt.
type verdict int

const (
	settled verdict = iota
	retryAgain
	giveUp
)

// retryBounded drives attempt until it settles, gives up, or the ceiling is
// reached. attempt receives the 1-based attempt number. An error from
// attempt aborts immediately; reaching the ceiling returns an error naming
// every retry reason seen along the way.
func retryBounded(ceiling int, attempt func(n int) (verdict, string, error)) error {
	var reasons []string
	for n := 1; ; n++ {
		v, reason, err := attempt(n)
		if err != nil {
			return err
		}
		switch v {
		case settled:
			return nil
		case giveUp:
			return fmt.Errorf("gave up on attempt %d: %s", n, reason)
		}
		reasons = append(reasons, reason)
		if n >= ceiling {
			return fmt.Errorf("retry ceiling %d reached: %s", ceiling, strings.Join(reasons, "; "))
		}
	}
}

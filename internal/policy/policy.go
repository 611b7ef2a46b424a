// Package policy evaluates eligibility rules over an identity snapshot.
// Evaluation is pure: no I/O, and the clock is passed in.
package policy

import (
	"fmt"
	"time"

	"attestor/internal/identity"
)

// Mode selects how rule groups combine.
type Mode string

const (
	// ModeAll requires every configured rule to pass. The empty Mode means ModeAll.
	ModeAll Mode = "all"
	// ModeAny passes when either the age group or the social group passes.
	ModeAny Mode = "any"
)

// Config holds the thresholds. A zero threshold disables that rule, and a
// zero Config always passes.
type Config struct {
	MinAccountAgeDays int
	MinFollowers      int
	MinFollowing      int
	MinPosts          int
	Mode              Mode
	// VerifiedAddressBonus halves the social thresholds (rounding up) when the
	// claiming wallet is one of the identity's verified addresses.
	VerifiedAddressBonus bool
}

// AntiFarming is the preset used against reward farming with fresh accounts.
func AntiFarming() Config {
	return Config{
		MinAccountAgeDays:    30,
		MinFollowers:         10,
		MinPosts:             5,
		Mode:                 ModeAny,
		VerifiedAddressBonus: true,
	}
}

// IsNoop reports whether the config has no rules.
func (c Config) IsNoop() bool {
	return c.MinAccountAgeDays <= 0 && c.MinFollowers <= 0 && c.MinFollowing <= 0 && c.MinPosts <= 0
}

// Result is the outcome of an evaluation. Reasons lists every failed rule,
// in a stable order, whether or not the overall result passed.
type Result struct {
	Pass    bool
	Reasons []string
}

// Evaluate applies cfg to rec at time now.
func Evaluate(cfg Config, rec identity.Record, now time.Time) Result {
	if cfg.IsNoop() {
		return Result{Pass: true}
	}

	var ageFailures, socialFailures []string
	ageConfigured := cfg.MinAccountAgeDays > 0
	socialConfigured := cfg.MinFollowers > 0 || cfg.MinFollowing > 0 || cfg.MinPosts > 0

	if ageConfigured {
		age, known := rec.AccountAge(now)
		days := int(age / (24 * time.Hour))
		switch {
		case !known:
			ageFailures = append(ageFailures, "account age unknown")
		case days < cfg.MinAccountAgeDays:
			ageFailures = append(ageFailures,
				fmt.Sprintf("account age %d days below minimum %d", days, cfg.MinAccountAgeDays))
		}
	}

	minFollowers, minFollowing, minPosts := cfg.MinFollowers, cfg.MinFollowing, cfg.MinPosts
	if cfg.VerifiedAddressBonus && rec.HasVerified(rec.Wallet) {
		minFollowers, minFollowing, minPosts = halfUp(minFollowers), halfUp(minFollowing), halfUp(minPosts)
	}
	socialFailures = appendBelow(socialFailures, "followers", rec.Followers, minFollowers)
	socialFailures = appendBelow(socialFailures, "following", rec.Following, minFollowing)
	socialFailures = appendBelow(socialFailures, "posts", rec.Posts, minPosts)

	reasons := append(ageFailures, socialFailures...)

	var pass bool
	if cfg.Mode == ModeAny {
		agePass := ageConfigured && len(ageFailures) == 0
		socialPass := socialConfigured && len(socialFailures) == 0
		pass = agePass || socialPass
	} else {
		pass = len(reasons) == 0
	}
	return Result{Pass: pass, Reasons: reasons}
}

func appendBelow(reasons []string, name string, have, want int) []string {
	if want > 0 && have < want {
		return append(reasons, fmt.Sprintf("%s %d below minimum %d", name, have, want))
	}
	return reasons
}

func halfUp(n int) int {
	if n <= 0 {
		return n
	}
	return (n + 1) / 2
}

package intent

import (
	"regexp"
	"strings"
)

// challengeName restricts captured names to characters safe to echo back
// and to use as storage lookup keys.
const challengeName = `[-_a-zA-Z0-9]+`

var mentions = regexp.MustCompile(`@[^ ]+ `)

type rule struct {
	pattern *regexp.Regexp
	build   func(m []string) Intent
}

// Rules are tried in order and the first match wins, so overlapping
// patterns like "help <name>" and "help" resolve by position. Bare "help"
// deliberately has no (?i) flag.
var rules = []rule{
	{
		pattern: regexp.MustCompile(`(?i)\A(?:send|give|tell)(?: me)?(?: my)?(?: submission)? code\z`),
		build:   func([]string) Intent { return Intent{Kind: RequestCode} },
	},
	{
		pattern: regexp.MustCompile(`(?i)\Asubmit (` + challengeName + `) ([a-zA-Z0-9]+)\z`),
		build:   func(m []string) Intent { return Intent{Kind: Submit, Challenge: m[1], Hash: m[2]} },
	},
	{
		pattern: regexp.MustCompile(`(?i)\Acheck (` + challengeName + `)\z`),
		build:   func(m []string) Intent { return Intent{Kind: Check, Challenge: m[1]} },
	},
	{
		pattern: regexp.MustCompile(`(?i)\A(?:send|give|tell)(?: me)?(?: a)? secret\z`),
		build:   func([]string) Intent { return Intent{Kind: RequestSecret} },
	},
	{
		pattern: regexp.MustCompile(`(?i)\Ado you have stairs in your house\??\z`),
		build:   func([]string) Intent { return Intent{Kind: EasterEggStairs} },
	},
	{
		pattern: regexp.MustCompile(`(?i)\Ai am protected\.?\z`),
		build:   func([]string) Intent { return Intent{Kind: EasterEggProtected} },
	},
	{
		pattern: regexp.MustCompile(`(?i)\A(?:send|give|tell)(?: me)? (` + challengeName + `) info\z`),
		build:   func(m []string) Intent { return Intent{Kind: ChallengeInfo, Challenge: m[1]} },
	},
	{
		pattern: regexp.MustCompile(`(?i)\Ahelp (` + challengeName + `)\z`),
		build:   func(m []string) Intent { return Intent{Kind: ChallengeInfo, Challenge: m[1]} },
	},
	{
		pattern: regexp.MustCompile(`\Ahelp(?: me)?\z`),
		build:   func([]string) Intent { return Intent{Kind: RequestHelp} },
	},
}

// Classify strips at-mentions from the text, trims it, and returns the
// intent of the first matching rule, or a NoMatch intent.
func Classify(text string) Intent {
	text = strings.TrimSpace(mentions.ReplaceAllString(text, ""))

	for _, r := range rules {
		if m := r.pattern.FindStringSubmatch(text); m != nil {
			return r.build(m)
		}
	}

	return Intent{Kind: NoMatch}
}

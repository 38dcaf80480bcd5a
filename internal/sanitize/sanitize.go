// Package sanitize validates the names and paths the ledger stores and
// turns free-form names into safe NATS subject tokens.
package sanitize

import "strings"

// EmptyToken stands in for an empty subject token.
const EmptyToken = "_"

var subjectReplacer = strings.NewReplacer(
	".", "_",
	" ", "_",
	"\t", "_",
	"\n", "_",
	"*", "_",
	">", "_",
)

// SubjectToken makes s usable as a single NATS subject token: separators,
// whitespace and wildcards become underscores.
//
//	"w1"       -> "w1"
//	"my wt.v2" -> "my_wt_v2"
//	""         -> "_"
func SubjectToken(s string) string {
	if s == "" {
		return EmptyToken
	}
	return subjectReplacer.Replace(s)
}

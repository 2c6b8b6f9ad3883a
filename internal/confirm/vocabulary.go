// Package confirm implements the confirmation workflow that gates every
// mutation: a draft operation is proposed, the user's next reply is matched
// against curated bilingual vocabularies, and only an explicit affirmative
// executes it. Anything else never mutates data.
package confirm

import "strings"

// Verdict is the interpretation of a confirmation reply.
type Verdict int

const (
	// VerdictUnknown — reply matched neither vocabulary. Treated as
	// not-confirmed: false negatives are preferred to accidental mutation.
	VerdictUnknown Verdict = iota
	VerdictAffirmative
	VerdictNegative
)

// The vocabularies are data, not conditionals: adding a locale means adding
// tokens here, never touching the state machine.

var affirmativeTokens = []string{
	// Portuguese
	"sim", "s", "claro", "confirmo", "confirmar", "confirma", "pode",
	"pode sim", "ok", "okay", "certo", "correto", "exato", "isso",
	"beleza", "perfeito", "vai", "manda", "fechado", "show",
	// English
	"yes", "y", "yep", "yeah", "sure", "confirm", "confirmed",
	"go ahead", "do it", "correct", "right", "sounds good",
}

var negativeTokens = []string{
	// Portuguese
	"não", "nao", "n", "cancela", "cancelar", "cancele", "errado",
	"nada disso", "deixa", "deixa pra lá", "para", "pare", "esquece",
	// English
	"no", "nope", "cancel", "wrong", "stop", "forget it", "never mind",
	"don't", "dont",
}

// Interpret matches a reply against the confirmation vocabularies.
//
// Matching rule: case-insensitive, trimmed; a token matches when the reply
// equals it exactly or starts with the token followed by a space ("sim pode
// criar" confirms; "simpatia" does not). Negatives are checked first so an
// ambiguous overlap can never accidentally confirm.
func Interpret(reply string) Verdict {
	normalized := strings.ToLower(strings.TrimSpace(reply))
	if normalized == "" {
		return VerdictUnknown
	}

	for _, token := range negativeTokens {
		if matches(normalized, token) {
			return VerdictNegative
		}
	}
	for _, token := range affirmativeTokens {
		if matches(normalized, token) {
			return VerdictAffirmative
		}
	}
	return VerdictUnknown
}

func matches(reply, token string) bool {
	if reply == token {
		return true
	}
	return strings.HasPrefix(reply, token+" ")
}

// AffirmativeTokens returns a copy of the affirmative vocabulary (tests).
func AffirmativeTokens() []string {
	return append([]string(nil), affirmativeTokens...)
}

// NegativeTokens returns a copy of the negative vocabulary (tests).
func NegativeTokens() []string {
	return append([]string(nil), negativeTokens...)
}

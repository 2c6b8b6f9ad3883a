package confirm

import "testing"

func TestInterpret_AllAffirmativeTokens(t *testing.T) {
	for _, token := range AffirmativeTokens() {
		if got := Interpret(token); got != VerdictAffirmative {
			t.Errorf("Interpret(%q) = %v, want VerdictAffirmative", token, got)
		}
	}
}

func TestInterpret_AllNegativeTokens(t *testing.T) {
	for _, token := range NegativeTokens() {
		if got := Interpret(token); got != VerdictNegative {
			t.Errorf("Interpret(%q) = %v, want VerdictNegative", token, got)
		}
	}
}

func TestInterpret_CaseAndWhitespace(t *testing.T) {
	for _, reply := range []string{"SIM", "  Sim  ", "Yes", " NÃO ", "No"} {
		if got := Interpret(reply); got == VerdictUnknown {
			t.Errorf("Interpret(%q) = VerdictUnknown, want a match", reply)
		}
	}
}

func TestInterpret_TokenPrefixWithSpace(t *testing.T) {
	if got := Interpret("sim pode criar"); got != VerdictAffirmative {
		t.Errorf("Interpret(\"sim pode criar\") = %v, want VerdictAffirmative", got)
	}
	if got := Interpret("não cancela isso"); got != VerdictNegative {
		t.Errorf("Interpret(\"não cancela isso\") = %v, want VerdictNegative", got)
	}
	// A token embedded in a longer word never matches.
	if got := Interpret("simpatia"); got != VerdictUnknown {
		t.Errorf("Interpret(\"simpatia\") = %v, want VerdictUnknown", got)
	}
	// Punctuation glued to the token falls outside the vocabulary; the
	// workflow re-prompts instead of guessing.
	if got := Interpret("sim, pode criar"); got != VerdictUnknown {
		t.Errorf("Interpret(\"sim, pode criar\") = %v, want VerdictUnknown", got)
	}
}

func TestInterpret_UnknownDefaultsToNoMutation(t *testing.T) {
	// Anything outside both vocabularies must never read as a confirmation.
	for _, reply := range []string{"", "talvez", "maybe", "o que?", "muda o valor para 60", "🤔"} {
		if got := Interpret(reply); got == VerdictAffirmative {
			t.Errorf("Interpret(%q) = VerdictAffirmative, want non-affirmative", reply)
		}
	}
}

func TestInterpret_NegativesWinOverlap(t *testing.T) {
	// "n" is in both shapes of short replies; it must read as negative.
	if got := Interpret("n"); got != VerdictNegative {
		t.Errorf("Interpret(\"n\") = %v, want VerdictNegative", got)
	}
}

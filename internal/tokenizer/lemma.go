package tokenizer

import "strings"

// irregular maps inflected forms that suffix rules cannot recover.
var irregular = map[string]string{
	"is": "be", "are": "be", "was": "be", "were": "be", "been": "be",
	"has": "have", "had": "have",
	"does": "do", "did": "do", "done": "do",
	"gave": "give", "given": "give",
	"took": "take", "taken": "take",
	"children": "child", "men": "man", "women": "woman",
	"mice": "mouse", "feet": "foot", "teeth": "tooth", "people": "person",
}

// invariant words end in an inflection-like suffix but are already roots.
var invariant = map[string]struct{}{
	"always": {}, "perhaps": {}, "whereas": {}, "across": {}, "thus": {},
	"plus": {}, "news": {}, "series": {}, "species": {}, "lens": {},
	"physics": {}, "mathematics": {}, "during": {}, "nothing": {},
	"something": {}, "anything": {}, "everything": {}, "morning": {},
	"evening": {}, "spring": {}, "string": {}, "thing": {}, "bed": {},
	"need": {}, "feed": {}, "seed": {}, "speed": {}, "hundred": {},
}

// Lemma reduces a lower-case alphabetic word to its root form using a
// handful of English inflection rules.
func Lemma(w string) string {
	if root, ok := irregular[w]; ok {
		return root
	}
	if _, ok := invariant[w]; ok {
		return w
	}
	n := len(w)

	switch {
	case n > 4 && strings.HasSuffix(w, "ies"):
		return w[:n-3] + "y"
	case strings.HasSuffix(w, "sses"):
		return w[:n-2]
	case n > 4 && (strings.HasSuffix(w, "xes") || strings.HasSuffix(w, "ches") ||
		strings.HasSuffix(w, "shes")):
		return w[:n-2]
	case n > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") &&
		!strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:n-1]
	case n > 4 && strings.HasSuffix(w, "ied"):
		return w[:n-3] + "y"
	case n > 4 && strings.HasSuffix(w, "ed"):
		return restore(w[:n-2])
	case n > 5 && strings.HasSuffix(w, "ing"):
		return restore(w[:n-3])
	}
	return w
}

// restore repairs a stem left behind by removing -ed or -ing: doubled final
// consonants are undoubled and a dropped silent e is put back.
func restore(stem string) string {
	n := len(stem)
	if n > 3 && stem[n-1] == stem[n-2] && isConsonant(stem[n-1]) {
		switch stem[n-1] {
		case 'l', 's', 'z':
			return stem
		}
		return stem[:n-1]
	}
	switch stem[n-1] {
	case 'v', 'c', 'z', 'u':
		return stem + "e"
	}
	return stem
}

func isConsonant(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	}
	return b >= 'a' && b <= 'z'
}

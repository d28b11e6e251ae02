package eval

import (
	"fmt"
	"strings"
	"unicode"
)

// Validate guards predicate sources before compilation. Predicates read
// session context values; they must not call functions or smuggle in
// statement-like syntax.
func Validate(src string) error {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil
	}

	illegalChars := []rune{'{', '}', ';', '@', '#', '$', '\\'}
	for _, ch := range illegalChars {
		if strings.ContainsRune(src, ch) {
			return fmt.Errorf("illegal character %q", ch)
		}
	}

	for i := 0; i < len(src)-1; i++ {
		if src[i] != '(' {
			continue
		}
		j := i - 1
		for j >= 0 && unicode.IsSpace(rune(src[j])) {
			j--
		}
		if j >= 0 && (unicode.IsLetter(rune(src[j])) || src[j] == '_') {
			k := j
			for k >= 0 && (unicode.IsLetter(rune(src[k])) || unicode.IsDigit(rune(src[k])) || src[k] == '_') {
				k--
			}
			ident := strings.TrimSpace(src[k+1 : j+1])
			if ident != "" && ident != "and" && ident != "or" && ident != "not" && ident != "in" {
				return fmt.Errorf("function calls are not allowed (found %q(...))", ident)
			}
		}
	}

	return nil
}

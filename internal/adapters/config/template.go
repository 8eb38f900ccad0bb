package config

import (
	"strings"

	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

// Placeholder kinds. A bare {name} refers to a wildcard, or to the log path and
// thread count inside commands.
const (
	kindWildcard = ""
	kindInput    = "i"
	kindOutput   = "o"
	kindValue    = "w"
	kindParam    = "p"
)

// resolveFunc returns the replacement for a placeholder expression.
type resolveFunc func(kind, arg string) (string, error)

// render replaces every {expr} in tmpl. Placeholders may nest, as in
// "{p:samples.{sample}.r1}", and inner ones are rendered first. Literal braces are
// written doubled, and shell parameter expansions such as ${HOME} are left untouched.
func render(tmpl string, resolve resolveFunc) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		next := byte(0)
		if i+1 < len(tmpl) {
			next = tmpl[i+1]
		}

		switch {
		case c == '{' && next == '{', c == '}' && next == '}':
			b.WriteByte(c)
			i += 2
		case c == '$' && next == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				b.WriteString(tmpl[i:])
				return b.String(), nil
			}
			b.WriteString(tmpl[i : i+end+1])
			i += end + 1
		case c == '{':
			end := matchBrace(tmpl, i)
			if end < 0 {
				return "", zerr.With(zerr.With(domain.ErrUnknownPlaceholder, "reason", "unbalanced braces"), "template", tmpl)
			}
			expr, err := render(tmpl[i+1:end], resolve)
			if err != nil {
				return "", err
			}
			kind, arg := splitExpr(expr)
			value, err := resolve(kind, arg)
			if err != nil {
				return "", err
			}
			b.WriteString(value)
			i = end + 1
		case c == '}':
			return "", zerr.With(zerr.With(domain.ErrUnknownPlaceholder, "reason", "unbalanced braces"), "template", tmpl)
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// matchBrace returns the index of the brace closing the one at open, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitExpr(expr string) (kind, arg string) {
	k, a, found := strings.Cut(expr, ":")
	if !found {
		return kindWildcard, strings.TrimSpace(expr)
	}
	return strings.TrimSpace(k), strings.TrimSpace(a)
}

// wildcardNames lists the bare wildcard references of tmpl in order of appearance.
func wildcardNames(tmpl string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	_, err := render(tmpl, func(kind, arg string) (string, error) {
		if kind == kindWildcard && !seen[arg] {
			seen[arg] = true
			names = append(names, arg)
		}
		return "", nil
	})
	return names, err
}

package flow

import (
	"regexp"
	"strings"

	"github.com/dukex/stepflow/pkg/models"
)

var (
	connectionsRefRe = regexp.MustCompile(`\{\{\s*connections\[((?:\s*'[^']*'\s*,?)+)\]`)
	agentsRefRe      = regexp.MustCompile(`\{\{\s*agents\[((?:\s*'[^']*'\s*,?)+)\]`)
	quotedIDRe       = regexp.MustCompile(`'([^']*)'`)
)

// ParseConnectionReferences returns the ids listed in {{connections['a', 'b']}} references of s.
func ParseConnectionReferences(s string) []string {
	return parseReferences(connectionsRefRe, s)
}

// ParseAgentReferences returns the ids listed in {{agents['a']}} references of s.
func ParseAgentReferences(s string) []string {
	return parseReferences(agentsRefRe, s)
}

func parseReferences(re *regexp.Regexp, s string) []string {
	if !strings.Contains(s, "{{") {
		return nil
	}

	var ids []string

	for _, m := range re.FindAllStringSubmatch(s, -1) {
		for _, q := range quotedIDRe.FindAllStringSubmatch(m[1], -1) {
			if id := strings.TrimSpace(q[1]); id != "" {
				ids = append(ids, id)
			}
		}
	}

	return ids
}

// ExtractConnectionIDs returns the distinct connection ids referenced by the
// tree, in first-seen order.
func ExtractConnectionIDs(trigger models.Trigger) []string {
	return extract(trigger, ParseConnectionReferences)
}

// ExtractAgentIDs returns the distinct agent ids referenced by the tree, in
// first-seen order.
func ExtractAgentIDs(trigger models.Trigger) []string {
	return extract(trigger, ParseAgentReferences)
}

func extract(trigger models.Trigger, parse func(string) []string) []string {
	ids := []string{}
	seen := map[string]struct{}{}

	Walk(trigger, func(s models.Step) bool {
		models.VisitStrings(s, func(v string) {
			for _, id := range parse(v) {
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		})

		return true
	})

	return ids
}

// RewriteStepReferences renames step identifiers inside {{ }} segments of s.
// A token is renamed when it equals a key of renames, is not preceded by a
// dot and is not inside a quoted literal.
func RewriteStepReferences(s string, renames map[string]string) string {
	if len(renames) == 0 || !strings.Contains(s, "{{") {
		return s
	}

	var out strings.Builder

	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			break
		}

		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			break
		}

		end += start + 2
		out.WriteString(rest[:start+2])
		out.WriteString(rewriteExpression(rest[start+2:end], renames))
		out.WriteString("}}")
		rest = rest[end+2:]
	}

	out.WriteString(rest)

	return out.String()
}

func rewriteExpression(expr string, renames map[string]string) string {
	var (
		out   strings.Builder
		quote byte
	)

	for i := 0; i < len(expr); {
		c := expr[i]

		switch {
		case quote != 0:
			if c == quote && (i == 0 || expr[i-1] != '\\') {
				quote = 0
			}

			out.WriteByte(c)
			i++
		case c == '\'' || c == '"' || c == '`':
			quote = c
			out.WriteByte(c)
			i++
		case isIdentStart(c):
			j := i + 1
			for j < len(expr) && isIdentPart(expr[j]) {
				j++
			}

			token := expr[i:j]
			if renamed, ok := renames[token]; ok && (i == 0 || expr[i-1] != '.') {
				token = renamed
			}

			out.WriteString(token)
			i = j
		case isIdentPart(c):
			// digits after a non-identifier character, e.g. numeric literals
			j := i + 1
			for j < len(expr) && isIdentPart(expr[j]) {
				j++
			}

			out.WriteString(expr[i:j])
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

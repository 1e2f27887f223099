// Package rules rewrites transcripts before they are interpreted, e.g. to fix
// recurring mis-hearings ("to do" → "todo") or to expand spoken shortcuts.
//
// A rules file holds one rule per line; blank lines and lines starting with
// '#' are skipped:
//
//	to do => todo
//	s/\bnavigate me\b/take me/g
//
// Literal rules match whole words case-insensitively. Regex rules use sed
// syntax with any non-alphanumeric delimiter and the flags i, g, m and s;
// they are case-insensitive by default and replace only the first match
// unless g is given.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

const defaultIterationLimit = 30

var ErrNotConverged = errors.New("transcript rules did not converge")

// Rule is one compiled rewrite.
type Rule struct {
	Line   int
	Source string

	pattern     *regexp.Regexp
	replacement string
	literal     bool
	firstOnly   bool
}

func (r Rule) rewrite(input string) string {
	switch {
	case r.literal:
		return r.pattern.ReplaceAllLiteralString(input, r.replacement)
	case r.firstOnly:
		loc := r.pattern.FindStringSubmatchIndex(input)
		if loc == nil {
			return input
		}
		expanded := r.pattern.ExpandString(nil, r.replacement, input, loc)
		return input[:loc[0]] + string(expanded) + input[loc[1]:]
	default:
		return r.pattern.ReplaceAllString(input, r.replacement)
	}
}

// Engine applies its rules in file order, repeating passes until the text
// stops changing.
type Engine struct {
	rules          []Rule
	iterationLimit int
	logger         *zap.Logger
}

// Load reads rules from path. An empty path or a missing file yields an engine
// that returns its input unchanged.
func Load(path string, iterationLimit int, logger *zap.Logger) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return Parse("", iterationLimit, logger)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Parse("", iterationLimit, logger)
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}

	engine, err := Parse(string(contents), iterationLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}
	engine.logger.Info("transcript rules loaded", zap.String("path", path), zap.Int("count", len(engine.rules)))
	return engine, nil
}

// Parse compiles rules from the contents of a rules file.
func Parse(contents string, iterationLimit int, logger *zap.Logger) (*Engine, error) {
	if iterationLimit <= 0 {
		iterationLimit = defaultIterationLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var rules []Rule
	for index, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		rule.Line = index + 1
		rule.Source = line
		rules = append(rules, rule)
	}

	return &Engine{rules: rules, iterationLimit: iterationLimit, logger: logger.Named("rules")}, nil
}

// Rules returns the compiled rules in application order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Apply rewrites text. When the rules still change the text after the
// iteration limit, the partially rewritten text is returned with
// ErrNotConverged.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	result := text
	for pass := 0; pass < e.iterationLimit; pass++ {
		changed := false
		for _, rule := range e.rules {
			if next := rule.rewrite(result); next != result {
				result = next
				changed = true
			}
		}
		if !changed {
			return result, nil
		}
	}

	e.logger.Warn("transcript rules hit iteration limit", zap.Int("limit", e.iterationLimit))
	return result, fmt.Errorf("%w after %d passes", ErrNotConverged, e.iterationLimit)
}

func parseLine(line string) (Rule, error) {
	if isSubstitution(line) {
		return parseSubstitution(line)
	}
	if strings.Contains(line, "=>") {
		return parseLiteral(line)
	}
	return Rule{}, errors.New("unsupported rule format")
}

func parseLiteral(line string) (Rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" {
		return Rule{}, errors.New("literal rule source cannot be empty")
	}

	pattern := regexp.QuoteMeta(from)
	if first, _ := utf8.DecodeRuneInString(from); isWordRune(first) {
		pattern = `\b` + pattern
	}
	if last, _ := utf8.DecodeLastRuneInString(from); isWordRune(last) {
		pattern += `\b`
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid literal source: %w", err)
	}
	return Rule{pattern: re, replacement: to, literal: true}, nil
}

func parseSubstitution(line string) (Rule, error) {
	delim := line[1]
	fields, rest, err := splitDelimited(line[2:], delim, 2)
	if err != nil {
		return Rule{}, err
	}

	ignoreCase, global := true, false
	var extra string
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'i':
			ignoreCase = true
		case 'g':
			global = true
		case 'm', 's':
			extra += string(flag)
		case ' ':
		default:
			return Rule{}, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	pattern := fields[0]
	prefix := extra
	if ignoreCase {
		prefix = "i" + prefix
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid regex: %w", err)
	}
	return Rule{pattern: re, replacement: fields[1], firstOnly: !global}, nil
}

// splitDelimited reads n delimiter-terminated fields. A backslash before the
// delimiter makes it literal (quoted in the pattern field); other escapes are
// kept for the regex compiler.
func splitDelimited(input string, delim byte, n int) ([]string, string, error) {
	fields := make([]string, 0, n)
	var field strings.Builder
	for index := 0; index < len(input); index++ {
		char := input[index]
		switch {
		case char == '\\' && index+1 < len(input) && input[index+1] == delim:
			if len(fields) == 0 {
				field.WriteString(regexp.QuoteMeta(string(delim)))
			} else {
				field.WriteByte(delim)
			}
			index++
		case char == '\\' && index+1 < len(input):
			field.WriteByte(char)
			field.WriteByte(input[index+1])
			index++
		case char == delim:
			fields = append(fields, field.String())
			field.Reset()
			if len(fields) == n {
				return fields, input[index+1:], nil
			}
		default:
			field.WriteByte(char)
		}
	}
	return nil, "", errors.New("unterminated expression")
}

func isSubstitution(line string) bool {
	if len(line) < 2 || line[0] != 's' {
		return false
	}
	delim := rune(line[1])
	return delim < utf8.RuneSelf && !isWordRune(delim) && !unicode.IsSpace(delim)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Package textfilter rewrites transcript text with substitutions loaded from a rules file.
//
// A rules file holds one rule per line. Blank lines and lines starting with # are ignored.
//
//	ehm =>
//	die => fail
//	s/\bwork ?x\b/WorkX/g
//
// Literal rules match whole words, case-insensitively. Regex rules use sed syntax with the
// flags i, g, m and s; matching is case-insensitive unless the pattern says otherwise.
package textfilter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

type rule interface {
	apply(input string) string
}

// Filter applies its rules in file order, each rule once per text.
type Filter struct {
	rules []rule
}

// Load reads rules from path. An empty path or a missing file yields a filter that changes nothing.
func Load(path string) (*Filter, error) {
	if strings.TrimSpace(path) == "" {
		return &Filter{}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Filter{}, nil
		}
		return nil, fmt.Errorf("open rules file %q: %w", path, err)
	}
	defer file.Close()

	filter, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse rules file %q: %w", path, err)
	}
	return filter, nil
}

// Parse compiles rules from r.
func Parse(r io.Reader) (*Filter, error) {
	var rules []rule

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var (
			compiled rule
			err      error
		)
		switch {
		case isRegexRule(line):
			compiled, err = parseRegexRule(line)
		case strings.Contains(line, "=>"):
			compiled, err = parseLiteralRule(line)
		default:
			err = errors.New("unsupported rule format")
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rules = append(rules, compiled)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &Filter{rules: rules}, nil
}

// Len returns the number of compiled rules.
func (f *Filter) Len() int {
	return len(f.rules)
}

// Apply rewrites text. It never fails; a filter without rules returns text unchanged.
func (f *Filter) Apply(text string) string {
	for _, r := range f.rules {
		text = r.apply(text)
	}
	return text
}

type literalRule struct {
	re          *regexp.Regexp
	replacement string
}

func parseLiteralRule(line string) (rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}

	pattern := regexp.QuoteMeta(from)
	if isWordByte(from[0]) {
		pattern = `\b` + pattern
	}
	if isWordByte(from[len(from)-1]) {
		pattern += `\b`
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	return literalRule{re: re, replacement: strings.TrimSpace(to)}, nil
}

func (r literalRule) apply(input string) string {
	return r.re.ReplaceAllLiteralString(input, r.replacement)
}

type regexRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func parseRegexRule(line string) (rule, error) {
	delim := line[1]
	pattern, pos, err := readDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, pos, err := readDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}

	modifiers := "i"
	global := false
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'g':
			global = true
		case 'i':
		case 'm', 's':
			modifiers += string(flag)
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + modifiers + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return regexRule{re: re, replacement: replacement, global: global}, nil
}

func (r regexRule) apply(input string) string {
	if r.global {
		return r.re.ReplaceAllString(input, r.replacement)
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input
	}
	expanded := r.re.ExpandString(nil, r.replacement, input, loc)
	return input[:loc[0]] + string(expanded) + input[loc[1]:]
}

// readDelimited reads up to the next unescaped delim. Escapes are kept for the regexp parser.
func readDelimited(line string, start int, delim byte) (string, int, error) {
	var b strings.Builder
	escaped := false
	for i := start; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == delim:
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
	}
	return "", 0, errors.New("unterminated expression")
}

func isRegexRule(line string) bool {
	return len(line) > 2 && line[0] == 's' && !isWordByte(line[1]) && line[1] != ' ' && line[1] != '\t'
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

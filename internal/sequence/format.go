package sequence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)

// Format renders seq into template. {SEQ} is the bare number, {SEQn} pads it
// to n digits. Values wider than n are not truncated.
func Format(template string, seq int64) (string, error) {
	if template == "" {
		return "", fmt.Errorf("sequence template is empty")
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid sequence value: %d", seq)
	}

	out := strings.ReplaceAll(template, "{SEQ}", strconv.FormatInt(seq, 10))
	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in sequence template: %s", out)
	}
	return out, nil
}

// Parse extracts the numeric part of a code produced by a "PREFIX-{SEQn}"
// template. Codes that do not carry the prefix return an error.
func Parse(prefix, code string) (int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(code), prefix+"-")
	if !ok {
		return 0, fmt.Errorf("code %q does not start with %s-", code, prefix)
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("code %q has no sequence number", code)
	}
	return n, nil
}

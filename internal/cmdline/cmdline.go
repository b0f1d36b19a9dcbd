// Package cmdline assembles Windows command lines from argv slices.
//
// Windows services are registered with a single command-line string, not
// an argv, so the launch command the SCM stores for a host must be quoted
// by the rules the C runtime uses to split it again. All command-line
// string assembly lives here so the quoting rules are implemented and
// audited exactly once.
package cmdline

import "strings"

// Quote escapes one argument following the MSVCRT parsing rules: the
// argument is quoted when it is empty or contains whitespace or quotes;
// inside quotes, a backslash run is doubled when it precedes a quote or
// the end of the argument, and literal quotes are backslash-escaped.
func Quote(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"") {
		return arg
	}

	var b strings.Builder
	b.WriteByte('"')

	slashes := 0
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		switch c {
		case '\\':
			slashes++
			b.WriteByte(c)
		case '"':
			// Double the run of backslashes that precedes the quote,
			// then escape the quote itself.
			for ; slashes > 0; slashes-- {
				b.WriteByte('\\')
			}
			b.WriteString(`\"`)
		default:
			slashes = 0
			b.WriteByte(c)
		}
	}

	// A trailing backslash run would otherwise escape the closing quote.
	for ; slashes > 0; slashes-- {
		b.WriteByte('\\')
	}

	b.WriteByte('"')
	return b.String()
}

// Join quotes each argument and joins them into one command line
func Join(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = Quote(arg)
	}
	return strings.Join(quoted, " ")
}

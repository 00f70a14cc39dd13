package sqlmux

// PlaceholderStyle is the target placeholder dialect for translation.
type PlaceholderStyle int

const (
	// StyleDollar is PostgreSQL-style $1, $2, ...
	StyleDollar PlaceholderStyle = iota
	// StyleQuestion is SQLite-style ?1, ?2, ... (also used by libsql and Turso).
	StyleQuestion
)

// TranslationMode resolves whether a single call translates placeholders,
// relative to the pool-wide default chosen at pool construction.
type TranslationMode int

const (
	// TranslateDefault follows the pool's default setting.
	TranslateDefault TranslationMode = iota
	// TranslateOn forces translation on for this call.
	TranslateOn
	// TranslateOff forces translation off for this call.
	TranslateOff
)

// Resolve applies the three-valued switch against the pool default.
func (m TranslationMode) Resolve(poolDefault bool) bool {
	switch m {
	case TranslateOn:
		return true
	case TranslateOff:
		return false
	default:
		return poolDefault
	}
}

// PrepareMode selects direct or prepared execution for a call.
type PrepareMode int

const (
	// PrepareDirect executes without preparing.
	PrepareDirect PrepareMode = iota
	// PreparePrepared prepares the statement before execution.
	PreparePrepared
)

// QueryOptions bundles the per-call switches for the query and execute paths.
type QueryOptions struct {
	Translation TranslationMode
	Prepare     PrepareMode
}

// Translator scanner states. A single left-to-right pass over the bytes;
// placeholders are rewritten only in the normal state.
type translateState int

const (
	stateNormal translateState = iota
	stateSingleQuoted
	stateDoubleQuoted
	stateLineComment
	stateBlockComment
	stateDollarQuoted
)

// TranslatePlaceholders rewrites placeholders in sql into the target style.
//
// A placeholder is a '$' or '?' followed by at least one ASCII digit; the sign
// is replaced and the digits are copied verbatim. Nothing inside string
// literals, quoted identifiers, line comments, nested block comments, or
// $tag$...$tag$ dollar-quoted blocks is touched. A '?' or '$' with no digits
// after it passes through unchanged, which keeps e.g. '?' inside LIKE patterns
// intact.
//
// When enabled is false, or when no rewrite is needed, the input string is
// returned without allocation. Malformed SQL is returned as-is; the translator
// itself cannot fail.
func TranslatePlaceholders(sql string, target PlaceholderStyle, enabled bool) string {
	if !enabled {
		return sql
	}

	// buf stays nil until the first replacement; untouched inputs are
	// returned as-is.
	var buf []byte
	ensure := func(upto int) {
		if buf == nil {
			buf = make([]byte, 0, len(sql)+8)
			buf = append(buf, sql[:upto]...)
		}
	}
	emit := func(lo, hi int) {
		if buf != nil {
			buf = append(buf, sql[lo:hi]...)
		}
	}

	state := stateNormal
	depth := 0
	tag := ""

	for i := 0; i < len(sql); i++ {
		b := sql[i]
		switch state {
		case stateNormal:
			switch {
			case b == '\'':
				state = stateSingleQuoted
			case b == '"':
				state = stateDoubleQuoted
			case isLineCommentStart(sql, i):
				state = stateLineComment
			case isBlockCommentStart(sql, i):
				state = stateBlockComment
				depth = 1
			case b == '$':
				if t, close, ok := dollarQuoteStart(sql, i); ok {
					state = stateDollarQuoted
					tag = t
					emit(i, close+1)
					i = close
					continue
				}
				if target == StyleQuestion {
					if end := scanDigits(sql, i+1); end > i+1 {
						ensure(i)
						buf = append(buf, '?')
						buf = append(buf, sql[i+1:end]...)
						i = end - 1
						continue
					}
				}
			case b == '?' && target == StyleDollar:
				if end := scanDigits(sql, i+1); end > i+1 {
					ensure(i)
					buf = append(buf, '$')
					buf = append(buf, sql[i+1:end]...)
					i = end - 1
					continue
				}
			}
		case stateSingleQuoted:
			if b == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					// Escaped quote stays literal.
					emit(i, i+2)
					i++
					continue
				}
				state = stateNormal
			}
		case stateDoubleQuoted:
			if b == '"' {
				if i+1 < len(sql) && sql[i+1] == '"' {
					emit(i, i+2)
					i++
					continue
				}
				state = stateNormal
			}
		case stateLineComment:
			if b == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if isBlockCommentStart(sql, i) {
				depth++
			} else if isBlockCommentEnd(sql, i) {
				depth--
				if depth == 0 {
					state = stateNormal
				}
			}
		case stateDollarQuoted:
			if b == '$' && matchesDollarTag(sql, i, tag) {
				emit(i, i+len(tag)+2)
				i += len(tag) + 1
				state = stateNormal
				continue
			}
		}
		emit(i, i+1)
	}

	if buf == nil {
		return sql
	}
	return string(buf)
}

func isLineCommentStart(sql string, i int) bool {
	return sql[i] == '-' && i+1 < len(sql) && sql[i+1] == '-'
}

func isBlockCommentStart(sql string, i int) bool {
	return sql[i] == '/' && i+1 < len(sql) && sql[i+1] == '*'
}

func isBlockCommentEnd(sql string, i int) bool {
	return sql[i] == '*' && i+1 < len(sql) && sql[i+1] == '/'
}

// dollarQuoteStart reports whether a $tag$ opener starts at i. The tag may be
// empty and is limited to [A-Za-z0-9_]. close is the index of the tag's
// closing '$'.
func dollarQuoteStart(sql string, i int) (tag string, close int, ok bool) {
	j := i + 1
	for j < len(sql) && sql[j] != '$' {
		b := sql[j]
		if !(b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9') {
			return "", 0, false
		}
		j++
	}
	if j < len(sql) && sql[j] == '$' {
		return sql[i+1 : j], j, true
	}
	return "", 0, false
}

// matchesDollarTag reports whether the exact closing $tag$ starts at i.
func matchesDollarTag(sql string, i int, tag string) bool {
	end := i + 1 + len(tag)
	return end < len(sql) && sql[i+1:end] == tag && sql[end] == '$'
}

// scanDigits returns the index just past the ASCII digits starting at start.
func scanDigits(sql string, start int) int {
	j := start
	for j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
		j++
	}
	return j
}

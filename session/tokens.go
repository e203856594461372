package session

// MaxTokens is the number of refresh tokens a user may hold at once.
const MaxTokens = 5

// Contains reports whether token is a current member of tokens.
func Contains(tokens []string, token string) bool {
	if token == "" {
		return false
	}
	for _, t := range tokens {
		if t == token {
			return true
		}
	}
	return false
}

// Push appends token and keeps only the newest limit entries.
func Push(tokens []string, token string, limit int) []string {
	next := make([]string, 0, len(tokens)+1)
	next = append(next, tokens...)
	next = append(next, token)
	return capNewest(next, limit)
}

// Replace removes old, appends next and re-applies the cap.
func Replace(tokens []string, old, next string, limit int) []string {
	out, _ := Remove(tokens, old)
	out = append(out, next)
	return capNewest(out, limit)
}

// Remove drops every occurrence of token. removed is false when token was not
// present, which callers treat as a no-op.
func Remove(tokens []string, token string) (out []string, removed bool) {
	out = make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == token {
			removed = true
			continue
		}
		out = append(out, t)
	}
	return out, removed
}

// Prune keeps only the tokens for which valid returns true.
func Prune(tokens []string, valid func(string) bool) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if valid(t) {
			out = append(out, t)
		}
	}
	return out
}

func capNewest(tokens []string, limit int) []string {
	if limit <= 0 {
		limit = MaxTokens
	}
	if len(tokens) <= limit {
		return tokens
	}
	return tokens[len(tokens)-limit:]
}

package clone

import "strings"

// NormalizeURL returns the deduplication key for a repository URL.
// Surrounding whitespace, trailing slashes and a trailing ".git" are removed and
// the result is lower-cased, so "https://GitHub.com/Example/Repo.git" and
// "https://github.com/example/repo" share a key.
func NormalizeURL(repositoryURL string) string {
	key := strings.ToLower(strings.TrimSpace(repositoryURL))
	key = strings.TrimRight(key, "/")
	return strings.TrimSuffix(key, ".git")
}

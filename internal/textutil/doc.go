// Package textutil ranks stored knowledge chunks against a search query.
//
// Text is reduced to terms: lowercased letter and digit runs of at least
// three characters, minus common English stop words. Identifiers written in
// camelCase or snake_case also contribute their parts, so a query for
// "retry policy" matches a chunk mentioning retryPolicy. Rank weights terms by
// smoothed inverse document frequency over the candidate set and scores each
// candidate by cosine similarity to the query.
package textutil

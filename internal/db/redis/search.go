package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/devsearch/internal/db"
	"github.com/kailas-cloud/devsearch/internal/domain"
	"github.com/kailas-cloud/devsearch/internal/domain/search/query"
)

// SearchText runs a ranked full-text search via FT.SEARCH WITHSCORES.
// Entries come back in engine rank order, highest score first.
func (s *Store) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	queryStr, err := translateRequest(q.Request)
	if err != nil {
		return nil, err
	}

	scorer := q.Scorer
	if scorer == "" {
		scorer = db.ScorerBM25
	}

	args := []string{q.IndexName, queryStr, "WITHSCORES", "SCORER", string(scorer)}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}

	args = append(args,
		"LIMIT", "0", strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "syntax error") {
			return nil, &db.Error{Op: db.OpSearch, Err: errors.Join(db.ErrQuerySyntax, err)}
		}
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index name") {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseScoredResult(raw)
}

// --- Query translation ---

// translateRequest renders a bool query in the RediSearch dialect 2 syntax.
//
// Must clauses are intersected. Should clauses are unioned when at most one
// of them has to match and intersected when all of them have to match;
// RediSearch has no operator for the range in between.
func translateRequest(req query.Request) (string, error) {
	root := req.Root()
	must := root.Must()
	should := root.Should()
	msm := root.MinimumShouldMatch()

	if len(must) == 0 && len(should) == 0 {
		return "", fmt.Errorf("empty bool query: %w", domain.ErrQueryTranslation)
	}

	parts := make([]string, 0, len(must)+1)
	for _, c := range must {
		parts = append(parts, translateMultiMatch(c))
	}

	if len(should) > 0 {
		clauses := make([]string, len(should))
		for i, c := range should {
			clauses[i] = translateMultiMatch(c)
		}

		switch {
		case msm == len(should) && msm > 1:
			parts = append(parts, clauses...)
		case msm <= 1 && (msm == 1 || len(must) == 0):
			parts = append(parts, union(clauses))
		case msm == 0:
			// Optional clauses only lift the score of documents matched by must.
			parts = append(parts, "~"+union(clauses))
		default:
			return "", fmt.Errorf("minimum_should_match %d of %d should clauses is not expressible: %w",
				msm, len(should), domain.ErrQueryTranslation)
		}
	}

	return strings.Join(parts, " "), nil
}

func union(clauses []string) string {
	if len(clauses) == 1 {
		return clauses[0]
	}
	return "(" + strings.Join(clauses, " | ") + ")"
}

// translateMultiMatch renders one multi-field match as a union of per-field
// term groups. Boosted fields carry a $weight attribute.
func translateMultiMatch(m query.MultiMatch) string {
	terms := make([]string, len(m.Terms()))
	for i, t := range m.Terms() {
		terms[i] = fuzzyTerm(escapeQuery(t), m.Fuzziness().EditsFor(t))
	}
	termGroup := "(" + strings.Join(terms, "|") + ")"

	groups := make([]string, len(m.Fields()))
	for i, f := range m.Fields() {
		g := "@" + f.Name() + ":" + termGroup
		if f.IsBoosted() {
			g = "(" + g + ")=>{$weight: " + strconv.FormatFloat(f.Boost(), 'f', -1, 64) + ";}"
		}
		groups[i] = g
	}
	return union(groups)
}

// fuzzyTerm wraps a term in one % pair per allowed edit.
func fuzzyTerm(term string, edits int) string {
	if edits <= 0 {
		return term
	}
	wrap := strings.Repeat("%", edits)
	return wrap + term + wrap
}

// --- Result parsing ---

func parseScoredResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, min(int(total), (len(raw)-1)/3))
	// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}

		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  score,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query helpers ---

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
	`,`, `\,`,
	`.`, `\.`,
	`/`, `\/`,
	`&`, `\&`,
	`#`, `\#`,
	`?`, `\?`,
	"`", "\\`",
)

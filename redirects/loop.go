package redirects

import (
	"net/http"
	"strings"

	"quill/metrics"
	"quill/types"
)

// NormalizePath lowercases p and reduces it to a single leading slash with no
// trailing slash. Empty input becomes "/".
func NormalizePath(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	return "/" + strings.Trim(p, "/")
}

// graph is the adjacency map source -> target over active rules
type graph struct {
	edges map[string]types.RewriteRule
	size  int
}

// newGraph indexes active rules by normalized source. The rule with excludeID
// is skipped when excludeID is set; the first rule wins on duplicate sources.
func newGraph(rules []types.RewriteRule, excludeID string) graph {
	g := graph{edges: make(map[string]types.RewriteRule, len(rules)), size: len(rules)}
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		if excludeID != "" && rule.ID == excludeID {
			continue
		}
		src := NormalizePath(rule.SourcePath)
		if _, exists := g.edges[src]; exists {
			continue
		}
		rule.SourcePath = src
		rule.TargetPath = NormalizePath(rule.TargetPath)
		g.edges[src] = rule
	}
	return g
}

// WouldCreateLoop reports whether adding candidate to activeRules makes a
// redirect chain that returns to a path already visited. Chains longer than
// len(activeRules)+1 hops are reported as loops.
func WouldCreateLoop(candidate types.RewriteRule, activeRules []types.RewriteRule) bool {
	loop := wouldCreateLoop(candidate, activeRules)
	if loop {
		metrics.LoopChecksTotal.WithLabelValues("loop").Inc()
	} else {
		metrics.LoopChecksTotal.WithLabelValues("ok").Inc()
	}
	return loop
}

func wouldCreateLoop(candidate types.RewriteRule, activeRules []types.RewriteRule) bool {
	source := NormalizePath(candidate.SourcePath)
	current := NormalizePath(candidate.TargetPath)
	if source == current {
		return true
	}

	g := newGraph(activeRules, candidate.ID)
	visited := map[string]struct{}{source: {}}
	for steps := 0; steps <= g.size; steps++ {
		rule, ok := g.edges[current]
		if !ok {
			return false
		}
		next := rule.TargetPath
		if _, seen := visited[next]; seen {
			return true
		}
		visited[current] = struct{}{}
		current = next
	}
	return true
}

// Resolution is the outcome of following the redirect chain for a path
type Resolution struct {
	Path       string `json:"path"`
	Target     string `json:"target"`
	StatusCode int    `json:"status_code"`
	Hops       int    `json:"hops"`
}

// Resolve follows active rules from path to the final target. ok is false when
// no rule matches path or the chain loops.
func Resolve(path string, activeRules []types.RewriteRule) (Resolution, bool) {
	start := NormalizePath(path)
	g := newGraph(activeRules, "")

	first, ok := g.edges[start]
	if !ok {
		return Resolution{}, false
	}
	res := Resolution{Path: start, StatusCode: statusCode(first)}

	visited := map[string]struct{}{start: {}}
	current := start
	for steps := 0; steps <= g.size; steps++ {
		rule, ok := g.edges[current]
		if !ok {
			res.Target = current
			return res, true
		}
		if _, seen := visited[rule.TargetPath]; seen {
			return Resolution{}, false
		}
		visited[rule.TargetPath] = struct{}{}
		current = rule.TargetPath
		res.Hops++
	}
	return Resolution{}, false
}

func statusCode(rule types.RewriteRule) int {
	switch rule.StatusCode {
	case http.StatusFound, http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return rule.StatusCode
	default:
		return http.StatusMovedPermanently
	}
}

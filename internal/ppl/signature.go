package ppl

import (
	"strings"

	"github.com/gnoverse/pplint/internal/syntax"
)

// spelling maps one framework keyword onto a canonical parameter name.
type spelling struct {
	keyword   string
	canonical string
}

// signature describes how a framework constructor binds its arguments.
// Position i of params lists the spellings accepted there; a positional
// argument takes the canonical name of the first spelling.
type signature struct {
	dist   string
	params [][]spelling
}

// sig builds a signature from "keyword:canonical" alternatives separated
// by '|', one string per position. A bare keyword is its own canonical
// name.
func sig(dist string, positions ...string) signature {
	s := signature{dist: dist}
	for _, pos := range positions {
		var alts []spelling
		for _, alt := range strings.Split(pos, "|") {
			kw, canon, ok := strings.Cut(alt, ":")
			if !ok {
				canon = kw
			}
			alts = append(alts, spelling{keyword: kw, canonical: canon})
		}
		s.params = append(s.params, alts)
	}
	return s
}

func (s signature) canonical(keyword string) (string, bool) {
	for _, alts := range s.params {
		for _, a := range alts {
			if a.keyword == keyword {
				return a.canonical, true
			}
		}
	}
	return "", false
}

// bind names the arguments of call, skipping the first skip positional
// arguments. Unknown keywords are dropped.
func (s signature) bind(t *syntax.Tree, call syntax.NodeID, skip int) []Param {
	n := t.Node(call)
	var out []Param
	for i, a := range n.Elts {
		if i < skip {
			continue
		}
		if k := i - skip; k < len(s.params) {
			out = append(out, Param{Name: s.params[k][0].canonical, Node: a})
		}
	}
	for _, kw := range n.Keywords {
		k := t.Node(kw)
		if name, ok := s.canonical(k.Name); ok {
			out = append(out, Param{Name: name, Node: k.Value})
		}
	}
	return out
}

// torchSignatures covers torch.distributions and pyro.distributions.
var torchSignatures = map[string]signature{
	"Normal":             sig("Normal", "loc:location", "scale"),
	"LogNormal":          sig("LogNormal", "loc:location", "scale"),
	"HalfNormal":         sig("HalfNormal", "scale"),
	"Cauchy":             sig("Cauchy", "loc:location", "scale"),
	"HalfCauchy":         sig("HalfCauchy", "scale"),
	"Laplace":            sig("Laplace", "loc:location", "scale"),
	"StudentT":           sig("StudentT", "df", "loc:location", "scale"),
	"Beta":               sig("Beta", "concentration1:alpha", "concentration0:beta"),
	"Gamma":              sig("Gamma", "concentration:shape", "rate"),
	"InverseGamma":       sig("InverseGamma", "concentration:shape", "rate"),
	"Exponential":        sig("Exponential", "rate"),
	"Chi2":               sig("ChiSquared", "df"),
	"Uniform":            sig("Uniform", "low:a", "high:b"),
	"Bernoulli":          sig("Bernoulli", "probs:p"),
	"Categorical":        sig("Categorical", "probs:p"),
	"Geometric":          sig("Geometric", "probs:p"),
	"Binomial":           sig("Binomial", "total_count:n", "probs:p"),
	"NegativeBinomial":   sig("NegativeBinomial", "total_count:n", "probs:p"),
	"Poisson":            sig("Poisson", "rate"),
	"Multinomial":        sig("Multinomial", "total_count:n", "probs:p"),
	"Dirichlet":          sig("Dirichlet", "concentration:alpha"),
	"MultivariateNormal": sig("MultivariateNormal", "loc:location", "covariance_matrix:covariance|precision_matrix:precision"),
	"Wishart":            sig("Wishart", "df", "covariance_matrix:scale"),
	"LKJCholesky":        sig("LKJCholesky", "dim:size", "concentration:shape"),
	"Delta":              sig("Dirac", "v:location"),
}

// torchDistribution resolves a torch-style distribution expression.
// Method chains such as `.to_event(1)` or `.expand([3])` are stripped.
func torchDistribution(t *syntax.Tree, dist syntax.NodeID) (string, []Param) {
	if t.Kind(dist) != syntax.KindCall {
		return "Unknown", []Param{{Name: "distribution", Node: dist}}
	}
	for {
		fn := t.Node(t.Node(dist).Func)
		if fn.Kind != syntax.KindAttribute || t.Kind(fn.Value) != syntax.KindCall {
			break
		}
		dist = fn.Value
	}
	name := lastName(t, dist)
	s, ok := torchSignatures[name]
	if !ok {
		return name, nil
	}
	return s.dist, s.bind(t, dist, 0)
}

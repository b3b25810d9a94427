package ppl

import (
	"github.com/gnoverse/pplint/internal/preprocess"
	"github.com/gnoverse/pplint/internal/syntax"
)

func init() { register(PyMC{}) }

// PyMC recognizes `x = pm.Dist("x", ...)` definitions inside a
// `with pm.Model() as model:` block.
type PyMC struct{}

var pymcDistributions = map[string]bool{}

func init() {
	for _, d := range []string{
		"Deterministic",
		"AsymmetricLaplace", "Beta", "Cauchy", "ChiSquared", "ExGaussian",
		"Exponential", "Flat", "Gamma", "Gumbel", "HalfCauchy",
		"HalfFlat", "HalfNormal", "HalfStudentT", "Interpolated", "InverseGamma",
		"Kumaraswamy", "Laplace", "Logistic", "LogitNormal", "LogNormal",
		"Moyal", "Normal", "Pareto", "PolyaGamma", "Rice",
		"SkewNormal", "StudentT", "Triangular", "TruncatedNormal", "Uniform",
		"VonMises", "Wald", "Weibull",
		"Bernoulli", "BetaBinomial", "Binomial", "Categorical", "DiracDelta",
		"DiscreteUniform", "DiscreteWeibull", "Geometric", "HyperGeometric", "NegativeBinomial",
		"OrderedLogistic", "OrderedProbit", "Poisson", "ZeroInflatedBinomial", "ZeroInflatedNegativeBinomial",
		"ZeroInflatedPoisson",
		"CAR", "Dirichlet", "DirichletMultinomial", "KroneckerNormal", "LKJCholeskyCov",
		"LKJCorr", "MatrixNormal", "Multinomial", "MvNormal", "MvStudentT",
		"OrderedMultinomial", "StickBreakingWeights", "Wishart", "WishartBartlett", "ZeroSumNormal",
		"Mixture", "NormalMixture",
		"Lognormal",
		"DensityDist",
	} {
		pymcDistributions[d] = true
	}
}

// Only the conventional parameterization of each distribution is
// checked; alternatives such as Beta(mu, sigma) are ignored.
var pymcSignatures = map[string]signature{
	"Beta":             sig("Beta", "alpha", "beta"),
	"Cauchy":           sig("Cauchy", "alpha:location", "beta:scale"),
	"ChiSquared":       sig("ChiSquared", "nu:df"),
	"Exponential":      sig("Exponential", "lam:rate"),
	"Gamma":            sig("Gamma", "alpha:shape", "beta:rate"),
	"HalfCauchy":       sig("HalfCauchy", "beta:scale"),
	"HalfFlat":         sig("HalfFlat"),
	"HalfNormal":       sig("HalfNormal", "sigma:scale|sd:scale|tau:precision"),
	"InverseGamma":     sig("InverseGamma", "alpha:shape", "beta:scale"),
	"LogNormal":        sig("LogNormal", "mu:location", "sigma:scale|sd:scale|tau:precision"),
	"Lognormal":        sig("LogNormal", "mu:location", "sigma:scale|sd:scale|tau:precision"),
	"Normal":           sig("Normal", "mu:location", "sigma:scale|sd:scale|tau:precision"),
	"Laplace":          sig("Laplace", "mu:location", "b:scale"),
	"StudentT":         sig("StudentT", "nu:df", "mu:location", "sigma:scale|sd:scale"),
	"Triangular":       sig("Triangular", "lower:a", "c", "upper:b"),
	"Uniform":          sig("Uniform", "lower:a", "upper:b"),
	"DiscreteUniform":  sig("DiscreteUniform", "lower:a", "upper:b"),
	"Bernoulli":        sig("Bernoulli", "p"),
	"Categorical":      sig("Categorical", "p"),
	"Geometric":        sig("Geometric", "p"),
	"Binomial":         sig("Binomial", "n", "p"),
	"NegativeBinomial": sig("NegativeBinomial", "n", "p"),
	"DiracDelta":       sig("Dirac", "c:location"),
	"Deterministic":    sig("Deterministic", "var:location"),
	"Poisson":          sig("Poisson", "mu:rate"),
	"Dirichlet":        sig("Dirichlet", "a:alpha"),
	"Multinomial":      sig("Multinomial", "n", "p"),
	"MvNormal":         sig("MultivariateNormal", "mu:location", "cov:covariance|tau:precision"),
	"Wishart":          sig("Wishart", "nu:df", "V:scale"),
	"LKJCholeskyCov":   sig("LKJCholesky", "n:size", "eta:shape"),
	"LKJCorr":          sig("LKJCholesky", "n:size", "eta:shape"),
	"TruncatedNormal":  sig("TruncatedNormal", "mu:location", "sigma:scale|sd:scale|tau:precision", "lower", "upper"),
}

func (PyMC) Name() string { return "pymc" }

func isPyMCModule(name string) bool { return name == "pm" || name == "pymc" }

// isDistributionCall matches pm.<Dist>(...) and pymc.<Dist>(...).
func (PyMC) isDistributionCall(t *syntax.Tree, call syntax.NodeID) bool {
	if t.Kind(call) != syntax.KindCall {
		return false
	}
	fn := t.Node(t.Node(call).Func)
	if fn.Kind != syntax.KindAttribute || t.Kind(fn.Value) != syntax.KindName {
		return false
	}
	return isPyMCModule(t.Node(fn.Value).Name) && pymcDistributions[fn.Name]
}

func (p PyMC) IsRandomVariableDefinition(t *syntax.Tree, id syntax.NodeID) bool {
	n := t.Node(id)
	return n.Kind == syntax.KindAssign && p.isDistributionCall(t, n.Value)
}

func (PyMC) RandomVariableName(t *syntax.Tree, def syntax.NodeID) string {
	return addressName(t, arg(t, t.Node(def).Value, 0))
}

func (PyMC) AddressNode(t *syntax.Tree, def syntax.NodeID) syntax.NodeID {
	return arg(t, t.Node(def).Value, 0)
}

func (PyMC) IsObserved(t *syntax.Tree, def syntax.NodeID) bool {
	return hasKeyword(t, t.Node(def).Value, "observed")
}

func (PyMC) DistributionNode(t *syntax.Tree, def syntax.NodeID) syntax.NodeID {
	return t.Node(def).Value
}

func (PyMC) Distribution(t *syntax.Tree, dist syntax.NodeID) (string, []Param) {
	name := lastName(t, dist)
	s, ok := pymcSignatures[name]
	if !ok {
		return "Unknown-" + name, nil
	}
	return s.dist, s.bind(t, dist, 1)
}

// IsModel matches `with pm.Model() as name:`.
func (PyMC) IsModel(t *syntax.Tree, id syntax.NodeID) bool {
	n := t.Node(id)
	if n.Kind != syntax.KindWith || t.Kind(n.Value) != syntax.KindCall {
		return false
	}
	switch name := t.CallName(n.Value); name {
	case "Model", "pm.Model", "pymc.Model":
		return true
	}
	return false
}

func (PyMC) ModelName(t *syntax.Tree, id syntax.NodeID) string {
	if tg := t.Node(id).Target; tg.Valid() && t.Kind(tg) == syntax.KindName {
		return t.Node(tg).Name
	}
	return ""
}

func (p PyMC) Preprocess(t *syntax.Tree, opts preprocess.Options) {
	normalizeBound(t)
	opts.IsRandomVariableCall = p.isDistributionCall
	preprocess.Run(t, opts)
}

// normalizeBound rewrites the bounded-distribution wrapper into the
// truncated distribution:
//
//	pm.Bound(pm.Normal, 0, 1)("x", mu=0)  ->  pm.TruncatedNormal("x", mu=0, lower=0, upper=1)
func normalizeBound(t *syntax.Tree) {
	calls := t.Find(t.Root, true, func(id syntax.NodeID) bool {
		if t.Kind(id) != syntax.KindCall {
			return false
		}
		inner := t.Node(id).Func
		if t.Kind(inner) != syntax.KindCall {
			return false
		}
		switch t.CallName(inner) {
		case "pm.Bound", "pymc.Bound":
			return len(t.Node(inner).Elts) > 0
		}
		return false
	})
	for _, call := range calls {
		inner := *t.Node(t.Node(call).Func)
		dist := inner.Elts[0]
		if k := t.Kind(dist); k != syntax.KindAttribute && k != syntax.KindName {
			continue
		}
		bounds := map[string]syntax.NodeID{}
		for i, name := range []string{"lower", "upper"} {
			if i+1 < len(inner.Elts) {
				bounds[name] = inner.Elts[i+1]
			}
		}
		for _, kw := range inner.Keywords {
			k := t.Node(kw)
			if k.Name == "lower" || k.Name == "upper" {
				bounds[k.Name] = k.Value
			}
		}

		d := *t.Node(dist)
		d.Name = "Truncated" + d.Name
		t.Set(dist, d)

		outer := *t.Node(call)
		outer.Func = dist
		for _, name := range []string{"lower", "upper"} {
			v, ok := bounds[name]
			if !ok {
				continue
			}
			kw := syntax.New(syntax.KindKeyword)
			kw.Name = name
			kw.Value = v
			kw.Span = t.Node(v).Span
			kw.Synthetic = true
			outer.Keywords = append(append([]syntax.NodeID(nil), outer.Keywords...), t.Add(kw))
		}
		t.Set(call, outer)
	}
}

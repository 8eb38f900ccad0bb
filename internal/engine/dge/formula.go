package dge

import (
	"regexp"
	"slices"
	"strings"

	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/mat"
)

// InterceptName is the name of the intercept coefficient.
const InterceptName = "Intercept"

var termPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Formula is an additive design formula over design factors, e.g. "~ batch + condition".
// The intercept is implicit; "~1" is the intercept-only model.
type Formula struct {
	Terms []string
}

// ParseFormula parses a design formula.
func ParseFormula(s string) (Formula, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "~")
	if !ok {
		return Formula{}, zerr.With(zerr.With(domain.ErrInvalidFormula, "formula", s), "reason", "must start with ~")
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return Formula{}, zerr.With(zerr.With(domain.ErrInvalidFormula, "formula", s), "reason", "no terms")
	}

	var terms []string
	for _, term := range strings.Split(rest, "+") {
		term = strings.TrimSpace(term)
		if term == "1" {
			continue
		}
		if !termPattern.MatchString(term) {
			return Formula{}, zerr.With(zerr.With(domain.ErrInvalidFormula, "formula", s), "term", term)
		}
		if slices.Contains(terms, term) {
			return Formula{}, zerr.With(zerr.With(domain.ErrInvalidFormula, "formula", s), "duplicate_term", term)
		}
		terms = append(terms, term)
	}
	return Formula{Terms: terms}, nil
}

// String returns the canonical form of the formula.
func (f Formula) String() string {
	if len(f.Terms) == 0 {
		return "~1"
	}
	return "~ " + strings.Join(f.Terms, " + ")
}

// nestedIn reports whether every term of f is a term of full.
func (f Formula) nestedIn(full Formula) bool {
	for _, t := range f.Terms {
		if !slices.Contains(full.Terms, t) {
			return false
		}
	}
	return true
}

// Contrast compares two levels of a factor: log2 of Numerator over Denominator.
type Contrast struct {
	Factor      string
	Numerator   string
	Denominator string
}

// ParseContrast parses "factor,numerator,denominator".
func ParseContrast(s string) (Contrast, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Contrast{}, zerr.With(zerr.With(domain.ErrInvalidContrast, "contrast", s), "reason", "expected factor,numerator,denominator")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return Contrast{}, zerr.With(zerr.With(domain.ErrInvalidContrast, "contrast", s), "reason", "empty field")
		}
	}
	c := Contrast{Factor: parts[0], Numerator: parts[1], Denominator: parts[2]}
	if c.Numerator == c.Denominator {
		return Contrast{}, zerr.With(zerr.With(domain.ErrInvalidContrast, "contrast", s), "reason", "numerator equals denominator")
	}
	return c, nil
}

// String returns the contrast in the form ParseContrast accepts.
func (c Contrast) String() string {
	return c.Factor + "," + c.Numerator + "," + c.Denominator
}

// model is a treatment-coded design matrix. The reference level of each factor is its
// first level in sorted order and has no column.
type model struct {
	formula Formula
	names   []string
	rows    [][]float64
	columns map[string]map[string]int
}

func newModel(f Formula, factors, levels map[string][]string, n int) *model {
	m := &model{
		formula: f,
		names:   []string{InterceptName},
		columns: make(map[string]map[string]int, len(f.Terms)),
	}
	for _, term := range f.Terms {
		ref := levels[term][0]
		m.columns[term] = make(map[string]int)
		for _, lvl := range levels[term][1:] {
			m.columns[term][lvl] = len(m.names)
			m.names = append(m.names, term+"_"+lvl+"_vs_"+ref)
		}
	}

	m.rows = make([][]float64, n)
	for j := range m.rows {
		row := make([]float64, len(m.names))
		row[0] = 1
		for _, term := range f.Terms {
			if col, ok := m.columns[term][factors[term][j]]; ok {
				row[col] = 1
			}
		}
		m.rows[j] = row
	}
	return m
}

func (m *model) coefficients() int {
	return len(m.names)
}

// fullRank reports whether X^T X is positive definite.
func (m *model) fullRank() bool {
	ones := make([]float64, len(m.rows))
	for i := range ones {
		ones[i] = 1
	}
	var chol mat.Cholesky
	return chol.Factorize(normalEquations(m.rows, ones, 0))
}

// hat returns the projection matrix X (X^T X)^-1 X^T.
func (m *model) hat() *mat.Dense {
	n, p := len(m.rows), m.coefficients()
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	var chol mat.Cholesky
	chol.Factorize(normalEquations(m.rows, ones, 0))
	var inv mat.SymDense
	_ = chol.InverseTo(&inv)

	x := mat.NewDense(n, p, nil)
	for j, row := range m.rows {
		x.SetRow(j, row)
	}
	var xInv, h mat.Dense
	xInv.Mul(x, &inv)
	h.Mul(&xInv, x.T())
	return &h
}

// contrastVector maps a level comparison to weights over the coefficients.
func (m *model) contrastVector(c Contrast, levels map[string][]string) ([]float64, error) {
	cols, ok := m.columns[c.Factor]
	if !ok {
		return nil, zerr.With(zerr.With(domain.ErrInvalidContrast, "factor", c.Factor), "reason", "factor is not in the design formula")
	}
	for _, lvl := range []string{c.Numerator, c.Denominator} {
		if !slices.Contains(levels[c.Factor], lvl) {
			return nil, zerr.With(zerr.With(domain.ErrInvalidContrast, "factor", c.Factor), "level", lvl)
		}
	}
	if c.Numerator == c.Denominator {
		return nil, zerr.With(zerr.With(domain.ErrInvalidContrast, "factor", c.Factor), "reason", "numerator equals denominator")
	}

	v := make([]float64, m.coefficients())
	if col, ok := cols[c.Numerator]; ok {
		v[col] = 1
	}
	if col, ok := cols[c.Denominator]; ok {
		v[col] = -1
	}
	return v, nil
}

// normalEquations returns X^T W X + ridge*I.
func normalEquations(rows [][]float64, w []float64, ridge float64) *mat.SymDense {
	p := len(rows[0])
	s := mat.NewSymDense(p, nil)
	for a := 0; a < p; a++ {
		for b := a; b < p; b++ {
			var sum float64
			for j, row := range rows {
				sum += row[a] * w[j] * row[b]
			}
			if a == b {
				sum += ridge
			}
			s.SetSym(a, b, sum)
		}
	}
	return s
}

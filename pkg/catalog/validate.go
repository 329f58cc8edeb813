package catalog

import "fmt"

// ValidationSeverity indicates whether a finding blocks loading or is
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks loading
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Subject  string             // template name, connection key or rule (empty if catalog-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Subject, e.Message)
}

// Errors returns the blocking findings only.
func Errors(findings []ValidationError) []ValidationError {
	var errs []ValidationError
	for _, f := range findings {
		if f.Severity == SeverityError {
			errs = append(errs, f)
		}
	}
	return errs
}

// minAxisLength is the shortest basis vector a connection frame may have.
const minAxisLength = 1e-9

// Validate runs every catalog check and returns all findings. An empty
// slice means the catalog is usable. It never mutates the catalog.
func (c *Catalog) Validate() []ValidationError {
	if len(c.Templates) == 0 {
		return []ValidationError{{Message: ErrEmptyCatalog.Error(), Severity: SeverityError}}
	}

	var errs []ValidationError
	errs = append(errs, validateTemplateNames(c)...)
	errs = append(errs, validateGeometry(c)...)
	errs = append(errs, validateConnections(c)...)
	errs = append(errs, validateRules(c)...)
	errs = append(errs, validateUnreferenced(c)...)
	return errs
}

// validateTemplateNames checks that template names are present and unique.
func validateTemplateNames(c *Catalog) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i, t := range c.Templates {
		if t.Name == "" {
			errs = append(errs, ValidationError{
				Subject:  fmt.Sprintf("template #%d", i),
				Message:  "template has no name",
				Severity: SeverityError,
			})
			continue
		}
		if seen[t.Name] {
			errs = append(errs, ValidationError{
				Subject:  t.Name,
				Message:  "duplicate template name",
				Severity: SeverityError,
			})
		}
		seen[t.Name] = true
	}
	return errs
}

// validateGeometry checks that every solid has positive extent.
func validateGeometry(c *Catalog) []ValidationError {
	var errs []ValidationError
	for _, t := range c.Templates {
		errs = append(errs, checkGeometry(t.Name, t.Geometry)...)
	}
	return errs
}

// checkGeometry validates g and, for a union, each of its parts. Findings
// on a nested part name it as subject/parts[i].
func checkGeometry(subject string, g GeometryDef) []ValidationError {
	fail := func(format string, args ...any) []ValidationError {
		return []ValidationError{{Subject: subject, Message: fmt.Sprintf(format, args...), Severity: SeverityError}}
	}
	switch g.Kind {
	case GeometryBox:
		if g.Size[0] <= 0 || g.Size[1] <= 0 || g.Size[2] <= 0 {
			return fail("box size (%.4f %.4f %.4f) must be positive", g.Size[0], g.Size[1], g.Size[2])
		}
	case GeometryCylinder:
		if g.Radius <= 0 || g.Height <= 0 {
			return fail("cylinder radius %.4f and height %.4f must be positive", g.Radius, g.Height)
		}
	case GeometryUnion:
		if len(g.Parts) < 2 {
			return fail("union needs at least 2 parts, got %d", len(g.Parts))
		}
		var errs []ValidationError
		for i, p := range g.Parts {
			errs = append(errs, checkGeometry(fmt.Sprintf("%s/parts[%d]", subject, i), p)...)
		}
		return errs
	default:
		return fail("unknown geometry kind %d", int(g.Kind))
	}
	return nil
}

// validateConnections checks connection ids are unique per template and
// that every frame has a usable basis.
func validateConnections(c *Catalog) []ValidationError {
	var errs []ValidationError
	for _, t := range c.Templates {
		seen := make(map[int]bool)
		for _, conn := range t.Connections {
			key := ConnKey{Part: t.Name, ID: conn.ID}.String()
			if seen[conn.ID] {
				errs = append(errs, ValidationError{
					Subject:  key,
					Message:  "duplicate connection id",
					Severity: SeverityError,
				})
			}
			seen[conn.ID] = true

			if conn.X.Len() < minAxisLength || conn.Y.Len() < minAxisLength {
				errs = append(errs, ValidationError{
					Subject:  key,
					Message:  "connection frame has a zero-length axis",
					Severity: SeverityError,
				})
				continue
			}
			if conn.X.Cross(conn.Y).Len() < minAxisLength {
				errs = append(errs, ValidationError{
					Subject:  key,
					Message:  "connection frame X and Y are parallel",
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateRules checks that both sides of every rule exist and that no
// directed pair is declared twice.
func validateRules(c *Catalog) []ValidationError {
	var errs []ValidationError
	seen := make(map[[2]ConnKey]bool)
	for _, r := range c.Rules {
		for _, side := range []ConnKey{r.A, r.B} {
			if c.Template(side.Part) == nil {
				errs = append(errs, ValidationError{
					Subject:  r.String(),
					Message:  fmt.Sprintf("rule references unknown part %q", side.Part),
					Severity: SeverityError,
				})
			} else if c.Connection(side) == nil {
				errs = append(errs, ValidationError{
					Subject:  r.String(),
					Message:  fmt.Sprintf("rule references unknown connection %s", side),
					Severity: SeverityError,
				})
			}
		}
		pair := [2]ConnKey{r.A, r.B}
		if seen[pair] {
			errs = append(errs, ValidationError{
				Subject:  r.String(),
				Message:  "duplicate rule",
				Severity: SeverityError,
			})
		}
		seen[pair] = true
	}
	return errs
}

// validateUnreferenced warns about connections no rule mentions; they can
// never join anything.
func validateUnreferenced(c *Catalog) []ValidationError {
	used := make(map[ConnKey]bool)
	for _, r := range c.Rules {
		used[r.A] = true
		used[r.B] = true
	}
	var warnings []ValidationError
	for _, t := range c.Templates {
		for _, conn := range t.Connections {
			key := ConnKey{Part: t.Name, ID: conn.ID}
			if !used[key] {
				warnings = append(warnings, ValidationError{
					Subject:  key.String(),
					Message:  "connection is not referenced by any rule",
					Severity: SeverityWarning,
				})
			}
		}
	}
	return warnings
}

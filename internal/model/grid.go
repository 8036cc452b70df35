package model

// Dimension is a named grid dimension and its length.
type Dimension struct {
	Name string
	Size uint64
}

// Variable describes one variable of a grid file without its data.
type Variable struct {
	Name       string
	Dimensions []string
	Attributes Attributes
}

// GridMetadata is the read-only view of a grid file's structure that the
// CRS resolver and repair writer work from.
type GridMetadata struct {
	Path       string
	Dimensions []Dimension
	Variables  []Variable
	Global     Attributes
}

// Variable returns the named variable, if present.
func (m *GridMetadata) Variable(name string) (*Variable, bool) {
	for i := range m.Variables {
		if m.Variables[i].Name == name {
			return &m.Variables[i], true
		}
	}
	return nil, false
}

// VariableNames returns variable names in file order.
func (m *GridMetadata) VariableNames() []string {
	names := make([]string, len(m.Variables))
	for i, v := range m.Variables {
		names[i] = v.Name
	}
	return names
}

// HasDimension reports whether the file declares the named dimension.
func (m *GridMetadata) HasDimension(name string) bool {
	for _, d := range m.Dimensions {
		if d.Name == name {
			return true
		}
	}
	return false
}

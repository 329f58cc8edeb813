package catalog

// MatrixIDs maps every (template, connection) pair to its rule-matrix index.
type MatrixIDs map[ConnKey]int

// AssignMatrixIDs numbers connections densely from zero, walking templates
// in catalog order and each template's connections in declaration order.
// The result depends only on its input, so the same catalog always yields
// the same ids. Duplicate keys keep the first id assigned.
func AssignMatrixIDs(templates []TemplateDef) MatrixIDs {
	ids := make(MatrixIDs)
	next := 0
	for _, t := range templates {
		for _, c := range t.Connections {
			key := ConnKey{Part: t.Name, ID: c.ID}
			if _, ok := ids[key]; ok {
				continue
			}
			ids[key] = next
			next++
		}
	}
	return ids
}

// Len returns the matrix dimension.
func (m MatrixIDs) Len() int {
	return len(m)
}

// Lookup returns the id for key.
func (m MatrixIDs) Lookup(key ConnKey) (int, bool) {
	id, ok := m[key]
	return id, ok
}

// Keys returns the inverse mapping: keys[id] is the connection with that id.
func (m MatrixIDs) Keys() []ConnKey {
	keys := make([]ConnKey, len(m))
	for k, id := range m {
		keys[id] = k
	}
	return keys
}

package conversation

import "fmt"

type (
	// MigrationError reports a blob whose version cannot be brought to the
	// runtime's current version. Callers must reset the conversation.
	MigrationError struct {
		Reason string
	}

	// Transform rewrites the decoded JSON tree of a state from one blob
	// version to the next. Transforms must be pure: same tree in, same
	// tree out.
	Transform func(tree map[string]any) (map[string]any, error)

	// Migration upgrades the state tree from version From to From+1.
	Migration struct {
		From      uint16
		Transform Transform
	}

	// MigrationRegistry holds the ordered upgrade chain for blob versions.
	// Registration happens at bootstrap; lookups are read-only afterwards.
	MigrationRegistry struct {
		byFrom map[uint16]Migration
	}
)

// Error implements the error interface.
func (e *MigrationError) Error() string { return "conversation: " + e.Reason }

// NewMigrationRegistry returns a registry seeded with the given migrations.
func NewMigrationRegistry(migrations ...Migration) (*MigrationRegistry, error) {
	r := &MigrationRegistry{byFrom: make(map[uint16]Migration)}
	for _, m := range migrations {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a migration. Each source version has at most one upgrade.
func (r *MigrationRegistry) Register(m Migration) error {
	if m.Transform == nil {
		return fmt.Errorf("conversation: migration from v%d requires a transform", m.From)
	}
	if _, exists := r.byFrom[m.From]; exists {
		return fmt.Errorf("conversation: duplicate migration from v%d", m.From)
	}
	r.byFrom[m.From] = m
	return nil
}

// chain returns the migrations upgrading from → to in application order. A
// missing link yields a MigrationError.
func (r *MigrationRegistry) chain(from, to uint16) ([]Migration, error) {
	var out []Migration
	for v := from; v < to; v++ {
		var (
			m  Migration
			ok bool
		)
		if r != nil {
			m, ok = r.byFrom[v]
		}
		if !ok {
			return nil, &MigrationError{Reason: fmt.Sprintf("no migration from blob version %d to %d", v, v+1)}
		}
		out = append(out, m)
	}
	return out, nil
}

// apply runs the chain over the tree in order.
func apply(migrations []Migration, tree map[string]any) (map[string]any, error) {
	for _, m := range migrations {
		next, err := m.Transform(tree)
		if err != nil {
			return nil, &MigrationError{Reason: fmt.Sprintf("migration from v%d failed: %v", m.From, err)}
		}
		tree = next
	}
	return tree, nil
}

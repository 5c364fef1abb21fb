package history

import "context"

// SetSchemaVersionForTest overwrites the recorded schema version.
func (s *Store) SetSchemaVersionForTest(ctx context.Context, version int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE schema_version SET version = ?`, version)
	return err
}

package storage

// Tx is the transaction boundary the service layer drives. The
// Postgres store returns *sql.Tx behind it; tests substitute a no-op.
type Tx interface {
	Commit() error
	Rollback() error
}

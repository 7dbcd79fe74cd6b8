package archive

// Store defines the contract for the audit archive holding ranking
// snapshots and terminal-mention exports.
type Store interface {
	Put(name string, data []byte) error
	Get(name string) ([]byte, error)
	List(prefix string) ([]string, error)
}

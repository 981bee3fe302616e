package fileio

// Iterator emits Files until io.EOF is returned by Next.
type Iterator interface {
	Next() (File, error)
	Close() error
}

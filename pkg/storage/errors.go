package storage

type storageError string

const (
	ErrNotFound        = storageError("not found")
	ErrConflict        = storageError("already exists")
	ErrInvalidArgument = storageError("invalid argument")
)

func (e storageError) Error() string {
	return string(e)
}

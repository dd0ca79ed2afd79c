package database

// DatabaseRequest is a write or transaction target resolved against a backend.
type DatabaseRequest struct {
	Reference    Reference
	Task         Task
	OnDisconnect bool
	LocalEvents  bool
}

// NewDatabaseRequest resolves the path of target.
func NewDatabaseRequest(backend Backend, target Target) DatabaseRequest {
	return DatabaseRequest{
		Reference:    backend.Reference(target.Path()),
		Task:         target.Task(),
		OnDisconnect: target.OnDisconnect(),
		LocalEvents:  target.LocalEvents(),
	}
}

// TransactionBlock returns the block of a transaction task, nil for any other task.
func (r DatabaseRequest) TransactionBlock() TransactionBlock {
	if t, ok := r.Task.(Transaction); ok {
		return t.Block
	}
	return nil
}

// DatabaseQueryRequest is an observe target resolved against a backend.
type DatabaseQueryRequest struct {
	Query Query
	Task  Task
}

// NewDatabaseQueryRequest resolves the path of target.
func NewDatabaseQueryRequest(backend Backend, target Target) DatabaseQueryRequest {
	return DatabaseQueryRequest{
		Query: backend.Reference(target.Path()),
		Task:  target.Task(),
	}
}

package taxonomy

import "fmt"

// Services named in an ExternalError.
const (
	ServiceEmbedding   = "embedding"
	ServiceVectorStore = "vectorstore"
)

// ExternalError indicates a failed round trip to the embedding server
// or the vector store. Semantic search is the only query that depends
// on external services; all other queries are unaffected by one.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ExternalError struct {
	Service  string
	Endpoint string
	cause    error
}

func (e *ExternalError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("taxonomy: %s call to %s failed", e.Service, e.Endpoint)
	}
	return fmt.Sprintf("taxonomy: %s call to %s failed: %v", e.Service, e.Endpoint, e.cause)
}

func (e *ExternalError) Unwrap() error { return e.cause }

func external(service, endpoint string, cause error) *ExternalError {
	return &ExternalError{Service: service, Endpoint: endpoint, cause: cause}
}

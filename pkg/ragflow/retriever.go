package ragflow

// Retriever fetches the top RetrievalTopK documents for the effective query.
type Retriever struct {
	store DocumentStore
}

// NewRetriever builds the retriever.
func NewRetriever(store DocumentStore) (*Retriever, error) {
	if store == nil {
		return nil, ErrMissingCollaborator
	}
	return &Retriever{store: store}, nil
}

// Run overwrites RetrievedDocs. A blank query yields an empty result and no
// error. The returned state never aliases the input.
func (r *Retriever) Run(ctx Context, s State) (State, error) {
	next := s.Clone()

	query := next.EffectiveQuery()
	if query == "" {
		ctx.Logger().Warn("skipping retrieval", "error", ErrEmptyQuery)
		next.RetrievedDocs = []Document{}
		next.record("Error: No query found")
		return next, nil
	}

	docs, err := r.store.Search(ctx, query, RetrievalTopK)
	if err != nil {
		return s, &CollaboratorError{Stage: Retrieving, Op: "search", Err: err}
	}
	if docs == nil {
		docs = []Document{}
	}

	next.RetrievedDocs = docs
	next.record("Retrieved %d documents", len(docs))

	ctx.Logger().Debug("documents retrieved",
		"query", query,
		"count", len(docs),
		"total_runes", TotalLength(docs),
	)
	return next, nil
}

// Package taxonomy connects the English category inventory to an
// external embedding server and vector store, and answers semantic
// category searches against them.
//
// Categories are embedded once from the English corpus into a single
// shared collection; searches in any wiki encode an English query,
// retrieve nearest categories by cosine similarity and project the hits
// into the target wiki by QID. The engine holds no vectors itself.
//
// Both backends are reached over HTTP: the embedding server through an
// OpenAI-compatible /embeddings endpoint and the vector store through a
// qdrant-compatible REST API. Concurrency toward both is bounded by a
// resource.Controller.
package taxonomy

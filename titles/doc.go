// Package titles resolves between page titles and QIDs.
//
// TitleService is the lookup contract the taxonomy layer projects search
// results through. CorpusTitles implements it on top of the corpora a
// Manager has in service; deployments with a SQL replica can provide
// their own implementation.
package titles

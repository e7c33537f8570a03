package corpus

// ArticleCategoryIndex holds article->category membership as CSR plus the
// inverse category->articles CSR, built from the same deduplicated edges
// by a second prefix-sum pass. Multi-set membership from the source
// collapses to a set.
type ArticleCategoryIndex struct {
	toCategories csr // article dense -> category dense
	toArticles   csr // category dense -> article dense
}

func newArticleCategoryIndex(articles, categories int, edges []edge) *ArticleCategoryIndex {
	x := &ArticleCategoryIndex{
		toCategories: buildCSR(articles, edges),
	}

	// Invert the deduplicated forward edges; buildCSR sorts per slice, so
	// the inverse slices come out ascending as well.
	inverse := make([]edge, 0, x.toCategories.edges())
	for a := 0; a < articles; a++ {
		for _, c := range x.toCategories.neighbors(uint32(a)) {
			inverse = append(inverse, edge{src: c, dst: uint32(a)})
		}
	}
	x.toArticles = buildCSR(categories, inverse)

	return x
}

// CategoriesOf returns the categories article a belongs to, ascending by
// dense id.
func (x *ArticleCategoryIndex) CategoriesOf(a uint32) []uint32 {
	return x.toCategories.neighbors(a)
}

// ArticlesIn returns the articles directly in category c, ascending by
// dense id.
func (x *ArticleCategoryIndex) ArticlesIn(c uint32) []uint32 {
	return x.toArticles.neighbors(c)
}

// NumEdges returns the number of deduplicated membership edges.
func (x *ArticleCategoryIndex) NumEdges() int {
	return x.toCategories.edges()
}

// Scatter pushes per-article weights onto every category the article
// belongs to. weights is indexed by article dense id, out by category
// dense id; zero weights are skipped, so the cost is linear in the
// membership edges of articles that were actually viewed. Scatter
// allocates nothing.
func (x *ArticleCategoryIndex) Scatter(weights []uint64, out []uint64) {
	for a, w := range weights {
		if w == 0 {
			continue
		}

		for _, c := range x.toCategories.neighbors(uint32(a)) {
			out[c] += w
		}
	}
}

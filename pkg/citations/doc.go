// Package citations tracks scholarly citations of published articles: cached
// lookups against the citation-search upstream and the daily sweep that
// refreshes every article's stored citation record.
package citations

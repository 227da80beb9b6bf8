package analytics

import (
	"context"
	"time"

	"github.com/openpress/pulse/pkg/upstream"
)

const (
	// recentArticleLimit caps the recent-articles section of journal metrics.
	recentArticleLimit = 10
	// recentAuthorLimit caps the author names carried per recent article.
	recentAuthorLimit = 3
)

// journalRefFor resolves a journal path to its configured (path, id) pair.
// Unconfigured paths get a ref without an ID; the content endpoints still
// work, only the view counter lookup is skipped.
func (s *Service) journalRefFor(path string) upstream.JournalRef {
	for _, ref := range s.ojs.JournalRefs() {
		if ref.Path == path {
			return ref
		}
	}
	return upstream.JournalRef{Path: path}
}

// JournalMetrics assembles the content inventory for one journal and merges
// in the live view counter. The totals must resolve; the recent-articles,
// published-issues and sections blocks degrade to empty on failure.
func (s *Service) JournalMetrics(ctx context.Context, journalPath string) (*JournalMetrics, error) {
	ref := s.journalRefFor(journalPath)

	stats, err := s.ojs.JournalStats(ctx, ref.Path)
	if err != nil {
		return nil, err
	}

	m := &JournalMetrics{
		JournalPath:    ref.Path,
		TotalArticles:  stats.TotalArticles,
		TotalIssues:    stats.TotalIssues,
		RecentArticles: []RecentArticle{},
		Sections:       []JournalSection{},
	}
	if ref.ID != "" {
		m.Views = s.store.JournalViews(ctx, ref.ID)
	}

	if recent, err := s.ojs.Submissions(ctx, ref.Path, "published", 1, recentArticleLimit); err == nil {
		for _, item := range recent.Items {
			authors := make([]string, 0, recentAuthorLimit)
			for _, a := range item.Authors {
				if len(authors) == recentAuthorLimit {
					break
				}
				authors = append(authors, a.FullName)
			}
			m.RecentArticles = append(m.RecentArticles, RecentArticle{
				ID:            item.ID,
				Title:         item.Title.Value(),
				Status:        item.Status,
				DatePublished: item.DatePublished,
				Authors:       authors,
			})
		}
	} else {
		s.logger.WithError(err).WithField("journal", ref.Path).Debug("recent articles unavailable")
	}

	if issues, err := s.ojs.PublishedIssues(ctx, ref.Path); err == nil {
		m.PublishedIssues = issues.ItemsMax
	}

	if sections, err := s.ojs.Sections(ctx, ref.Path); err == nil {
		for _, sec := range sections {
			m.Sections = append(m.Sections, JournalSection{ID: sec.ID, Title: sec.Title.Value()})
		}
	}

	return m, nil
}

// AllJournalMetrics rolls journal metrics up across every configured
// journal. Journals whose inventory cannot be fetched are skipped.
func (s *Service) AllJournalMetrics(ctx context.Context) *AllJournalMetrics {
	refs := s.ojs.JournalRefs()
	all := &AllJournalMetrics{
		Journals:      []JournalMetrics{},
		TotalJournals: len(refs),
		Timestamp:     time.Now().UTC(),
	}

	for _, ref := range refs {
		m, err := s.JournalMetrics(ctx, ref.Path)
		if err != nil {
			s.logger.WithError(err).WithField("journal", ref.Path).Warn("skipping journal in metrics rollup")
			continue
		}
		all.Journals = append(all.Journals, *m)
		all.TotalArticles += m.TotalArticles
		all.TotalIssues += m.TotalIssues
	}

	return all
}

// ArticleDetails merges one submission's content record with its live
// counters and the cached citation summary.
func (s *Service) ArticleDetails(ctx context.Context, journalPath, articleID string) (*ArticleDetails, error) {
	sub, err := s.ojs.Article(ctx, journalPath, articleID)
	if err != nil {
		return nil, err
	}

	d := &ArticleDetails{
		ArticleID:     sub.ID,
		Title:         sub.Title.Value(),
		Abstract:      sub.Abstract.Value(),
		Section:       sub.Section.Title.Value(),
		Status:        sub.Status,
		DatePublished: sub.DatePublished,
		Authors:       []ArticleAuthor{},
		Views:         s.store.ArticleViews(ctx, articleID),
		Downloads:     s.store.ArticleDownloads(ctx, articleID),
	}
	for _, a := range sub.Authors {
		d.Authors = append(d.Authors, ArticleAuthor{
			FullName:    a.FullName,
			Affiliation: a.Affiliation,
			ORCID:       a.ORCID,
		})
	}

	if rec, err := s.store.CitationRecordFor(ctx, articleID); err == nil && rec != nil {
		d.Citations = rec
	}

	return d, nil
}

// Package memory implements the in-memory storage backend: a set of plain
// Go maps guarded by one reader/writer lock, with no durability. Flush is
// a no-op.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jchristn/verbex/internal/ids"
	"github.com/jchristn/verbex/internal/model"
	"github.com/jchristn/verbex/internal/store"
)

type postingKey struct {
	docID  string
	termID string
}

// writeKey marks a context as running inside WithWriteLock, so nested
// backend calls don't try to re-acquire the (non-reentrant) lock.
type writeKey struct{}

func inWrite(ctx context.Context) bool {
	return ctx.Value(writeKey{}) != nil
}

// Store is the in-memory Backend implementation.
type Store struct {
	name string
	gen  *ids.Generator

	// mu is the backend's single reader/writer lock. WithWriteLock holds
	// it exclusively for the whole callback; every other method takes it
	// itself unless the context carries the writeKey marker.
	mu sync.RWMutex

	opened   bool
	metadata model.IndexMetadata

	documents map[string]model.Document // doc id -> Document
	names     map[string]string         // doc name -> doc id

	terms   map[string]model.Term // term text -> Term
	termIDs map[string]string     // term id -> term text

	postings map[postingKey]model.Posting
	byTerm   map[string]map[string]struct{} // term id -> set of doc id
	byDoc    map[string]map[string]struct{} // doc id -> set of term id

	// label/tag slot key: "" means index-level, else the document id.
	labels map[string]map[string]string  // slot -> lower(label) -> original label
	tags   map[string]map[string]*string // slot -> key -> value
}

// New returns a fresh, unopened in-memory Store for the given index name.
func New(name string) *Store {
	return &Store{
		name:      name,
		gen:       ids.NewGenerator(),
		documents: make(map[string]model.Document),
		names:     make(map[string]string),
		terms:     make(map[string]model.Term),
		termIDs:   make(map[string]string),
		postings:  make(map[postingKey]model.Posting),
		byTerm:    make(map[string]map[string]struct{}),
		byDoc:     make(map[string]map[string]struct{}),
		labels:    make(map[string]map[string]string),
		tags:      make(map[string]map[string]*string),
	}
}

// rlock takes the read lock unless ctx is already inside WithWriteLock.
// It returns the matching unlock func.
func (s *Store) rlock(ctx context.Context) func() {
	if inWrite(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// wlock takes the exclusive lock unless ctx is already inside WithWriteLock.
func (s *Store) wlock(ctx context.Context) func() {
	if inWrite(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Durable implements store.Backend.
func (s *Store) Durable() bool { return false }

// Open implements store.Backend.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}
	now := time.Now().UTC()
	s.metadata = model.IndexMetadata{
		ID:              s.gen.New(),
		Name:            s.name,
		CreatedUTC:      now,
		LastModifiedUTC: now,
	}
	s.opened = true
	return nil
}

// Close implements store.Backend.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = false
	return nil
}

// Flush implements store.Backend. There is nothing to persist, so this is
// a no-op.
func (s *Store) Flush(ctx context.Context) error { return nil }

// snapshot is a cheap shallow clone of every top-level map, used so that a
// failed write (fn returning an error) can be rolled back without mutating
// state in place inside the caller's fn. It relies on callers always
// replacing map entries wholesale (never mutating a stored struct's slice
// fields through an alias).
type snapshot struct {
	documents map[string]model.Document
	names     map[string]string
	terms     map[string]model.Term
	termIDs   map[string]string
	postings  map[postingKey]model.Posting
	byTerm    map[string]map[string]struct{}
	byDoc     map[string]map[string]struct{}
	labels    map[string]map[string]string
	tags      map[string]map[string]*string
	metadata  model.IndexMetadata
}

func (s *Store) snapshot() snapshot {
	clone := func(m map[string]struct{}) map[string]struct{} {
		c := make(map[string]struct{}, len(m))
		for k := range m {
			c[k] = struct{}{}
		}
		return c
	}
	byTerm := make(map[string]map[string]struct{}, len(s.byTerm))
	for k, v := range s.byTerm {
		byTerm[k] = clone(v)
	}
	byDoc := make(map[string]map[string]struct{}, len(s.byDoc))
	for k, v := range s.byDoc {
		byDoc[k] = clone(v)
	}
	labels := make(map[string]map[string]string, len(s.labels))
	for k, v := range s.labels {
		c := make(map[string]string, len(v))
		for k2, v2 := range v {
			c[k2] = v2
		}
		labels[k] = c
	}
	tags := make(map[string]map[string]*string, len(s.tags))
	for k, v := range s.tags {
		c := make(map[string]*string, len(v))
		for k2, v2 := range v {
			c[k2] = v2
		}
		tags[k] = c
	}
	return snapshot{
		documents: copyDocMap(s.documents),
		names:     copyStrMap(s.names),
		terms:     copyTermMap(s.terms),
		termIDs:   copyStrMap(s.termIDs),
		postings:  copyPostingMap(s.postings),
		byTerm:    byTerm,
		byDoc:     byDoc,
		labels:    labels,
		tags:      tags,
		metadata:  s.metadata,
	}
}

func (s *Store) restore(snap snapshot) {
	s.documents = snap.documents
	s.names = snap.names
	s.terms = snap.terms
	s.termIDs = snap.termIDs
	s.postings = snap.postings
	s.byTerm = snap.byTerm
	s.byDoc = snap.byDoc
	s.labels = snap.labels
	s.tags = snap.tags
	s.metadata = snap.metadata
}

func copyDocMap(m map[string]model.Document) map[string]model.Document {
	c := make(map[string]model.Document, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func copyStrMap(m map[string]string) map[string]string {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func copyTermMap(m map[string]model.Term) map[string]model.Term {
	c := make(map[string]model.Term, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func copyPostingMap(m map[postingKey]model.Posting) map[postingKey]model.Posting {
	c := make(map[postingKey]model.Posting, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// WithWriteLock implements store.Backend: it holds the exclusive lock for
// the whole callback and restores a pre-call snapshot if fn fails, so a
// failed multi-step write never leaves partial state behind.
func (s *Store) WithWriteLock(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, writeKey{}, struct{}{})); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) GetMetadata(ctx context.Context) (model.IndexMetadata, error) {
	defer s.rlock(ctx)()
	return s.metadata, nil
}

func (s *Store) TouchMetadata(ctx context.Context) error {
	defer s.wlock(ctx)()
	s.metadata.LastModifiedUTC = time.Now().UTC()
	return nil
}

func (s *Store) AddOrGetTermsBatch(ctx context.Context, terms []string) (map[string]string, error) {
	defer s.wlock(ctx)()
	out := make(map[string]string, len(terms))
	for _, t := range terms {
		if existing, ok := s.terms[t]; ok {
			out[t] = existing.ID
			continue
		}
		id := s.gen.New()
		s.terms[t] = model.Term{ID: id, Term: t}
		s.termIDs[id] = t
		out[t] = id
	}
	return out, nil
}

func (s *Store) IncrementTermFrequenciesBatch(ctx context.Context, deltas map[string]store.TermDelta) error {
	defer s.wlock(ctx)()
	for termID, delta := range deltas {
		text, ok := s.termIDs[termID]
		if !ok {
			continue
		}
		term := s.terms[text]
		term.DocumentFrequency += delta.DocFreqDelta
		term.TotalFrequency += delta.TotalFreqDelta
		s.terms[text] = term
	}
	return nil
}

func (s *Store) DecrementTermFrequenciesBatch(ctx context.Context, deltas map[string]store.TermDelta) error {
	defer s.wlock(ctx)()
	for termID, delta := range deltas {
		text, ok := s.termIDs[termID]
		if !ok {
			continue
		}
		term := s.terms[text]
		term.DocumentFrequency -= delta.DocFreqDelta
		term.TotalFrequency -= delta.TotalFreqDelta
		if term.DocumentFrequency < 0 {
			term.DocumentFrequency = 0
		}
		if term.TotalFrequency < 0 {
			term.TotalFrequency = 0
		}
		s.terms[text] = term
		if term.DocumentFrequency == 0 && term.TotalFrequency == 0 {
			delete(s.terms, text)
			delete(s.termIDs, termID)
		}
	}
	return nil
}

func (s *Store) TermStats(ctx context.Context, term string) (model.TermStatistics, bool, error) {
	defer s.rlock(ctx)()
	t, ok := s.terms[term]
	if !ok {
		return model.TermStatistics{}, false, nil
	}
	return model.TermStatistics{DocumentFrequency: t.DocumentFrequency, TotalFrequency: t.TotalFrequency}, true, nil
}

func (s *Store) InsertPostingsBatch(ctx context.Context, postings []model.Posting) error {
	defer s.wlock(ctx)()
	for _, p := range postings {
		key := postingKey{docID: p.DocumentID, termID: p.TermID}
		s.postings[key] = p
		if s.byTerm[p.TermID] == nil {
			s.byTerm[p.TermID] = make(map[string]struct{})
		}
		s.byTerm[p.TermID][p.DocumentID] = struct{}{}
		if s.byDoc[p.DocumentID] == nil {
			s.byDoc[p.DocumentID] = make(map[string]struct{})
		}
		s.byDoc[p.DocumentID][p.TermID] = struct{}{}
	}
	return nil
}

func (s *Store) GetDocumentPostings(ctx context.Context, documentID string) ([]model.Posting, error) {
	defer s.rlock(ctx)()
	termSet := s.byDoc[documentID]
	out := make([]model.Posting, 0, len(termSet))
	for termID := range termSet {
		if p, ok := s.postings[postingKey{docID: documentID, termID: termID}]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) InsertDocumentRow(ctx context.Context, doc model.Document) error {
	defer s.wlock(ctx)()
	if _, exists := s.documents[doc.ID]; exists {
		return store.ErrDuplicate
	}
	if _, taken := s.names[doc.Name]; taken {
		return store.ErrDuplicate
	}
	s.documents[doc.ID] = doc
	s.names[doc.Name] = doc.ID
	return nil
}

func (s *Store) DeleteDocumentCascade(ctx context.Context, id string) error {
	defer s.wlock(ctx)()
	doc, ok := s.documents[id]
	if !ok {
		return store.ErrNotFound
	}
	for termID := range s.byDoc[id] {
		delete(s.postings, postingKey{docID: id, termID: termID})
		if set := s.byTerm[termID]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(s.byTerm, termID)
			}
		}
	}
	delete(s.byDoc, id)
	delete(s.documents, id)
	delete(s.names, doc.Name)
	delete(s.labels, id)
	delete(s.tags, id)
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (model.Document, error) {
	defer s.rlock(ctx)()
	d, ok := s.documents[id]
	if !ok {
		return model.Document{}, store.ErrNotFound
	}
	return d, nil
}

func (s *Store) GetDocumentByName(ctx context.Context, name string) (model.Document, error) {
	defer s.rlock(ctx)()
	id, ok := s.names[name]
	if !ok {
		return model.Document{}, store.ErrNotFound
	}
	return s.documents[id], nil
}

func (s *Store) DocumentExists(ctx context.Context, id string) (bool, error) {
	defer s.rlock(ctx)()
	_, ok := s.documents[id]
	return ok, nil
}

func (s *Store) DocumentExistsByName(ctx context.Context, name string) (bool, error) {
	defer s.rlock(ctx)()
	_, ok := s.names[name]
	return ok, nil
}

func (s *Store) ListDocuments(ctx context.Context, opts store.ListOptions) ([]model.Document, error) {
	defer s.rlock(ctx)()
	all := make([]model.Document, 0, len(s.documents))
	for _, d := range s.documents {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	// Negative offsets are treated as 0, matching the sqlite backend.
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Offset >= len(all) {
		return []model.Document{}, nil
	}
	end := opts.Offset + opts.Limit
	if opts.Limit < 0 || end > len(all) {
		end = len(all)
	}
	return all[opts.Offset:end], nil
}

func (s *Store) DocumentTerms(ctx context.Context, id string) ([]string, error) {
	defer s.rlock(ctx)()
	set := s.byDoc[id]
	out := make([]string, 0, len(set))
	for termID := range set {
		if text, ok := s.termIDs[termID]; ok {
			out = append(out, text)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ResolveTermIDs(ctx context.Context, terms []string) (map[string]string, error) {
	defer s.rlock(ctx)()
	out := make(map[string]string, len(terms))
	for _, t := range terms {
		if term, ok := s.terms[t]; ok {
			out[t] = term.ID
		}
	}
	return out, nil
}

func (s *Store) SearchCandidates(ctx context.Context, filter store.SearchFilter) ([]store.CandidateDocument, error) {
	defer s.rlock(ctx)()
	var docIDs map[string]struct{}

	for i, termID := range filter.TermIDs {
		set := s.byTerm[termID]
		if i == 0 {
			docIDs = make(map[string]struct{}, len(set))
			for d := range set {
				docIDs[d] = struct{}{}
			}
			continue
		}
		if filter.AndLogic {
			for d := range docIDs {
				if _, ok := set[d]; !ok {
					delete(docIDs, d)
				}
			}
		} else {
			for d := range set {
				docIDs[d] = struct{}{}
			}
		}
	}

	out := make([]store.CandidateDocument, 0, len(docIDs))
	for docID := range docIDs {
		doc, ok := s.documents[docID]
		if !ok {
			continue
		}
		if !s.matchesLabels(docID, filter.Labels) {
			continue
		}
		if !s.matchesTags(docID, filter.Tags) {
			continue
		}
		matched := make(map[string]store.MatchedTerm)
		for _, termID := range filter.TermIDs {
			p, ok := s.postings[postingKey{docID: docID, termID: termID}]
			if !ok {
				continue
			}
			text := s.termIDs[termID]
			term := s.terms[text]
			matched[text] = store.MatchedTerm{
				TermFrequency:     p.TermFrequency,
				DocumentFrequency: term.DocumentFrequency,
				TermPositions:     p.TermPositions,
			}
		}
		out = append(out, store.CandidateDocument{Document: doc, MatchedTerms: matched})
	}
	return out, nil
}

func (s *Store) matchesLabels(docID string, want []string) bool {
	if len(want) == 0 {
		return true
	}
	have := s.labels[docID]
	for _, w := range want {
		if have == nil {
			return false
		}
		if _, ok := have[strings.ToLower(w)]; !ok {
			return false
		}
	}
	return true
}

func (s *Store) matchesTags(docID string, want map[string]string) bool {
	if len(want) == 0 {
		return true
	}
	have := s.tags[docID]
	for k, v := range want {
		if have == nil {
			return false
		}
		val, ok := have[k]
		if !ok || val == nil || *val != v {
			return false
		}
	}
	return true
}

func (s *Store) AddLabel(ctx context.Context, documentID, label string) error {
	defer s.wlock(ctx)()
	if s.labels[documentID] == nil {
		s.labels[documentID] = make(map[string]string)
	}
	s.labels[documentID][strings.ToLower(label)] = label
	return nil
}

func (s *Store) RemoveLabel(ctx context.Context, documentID, label string) error {
	defer s.wlock(ctx)()
	if m := s.labels[documentID]; m != nil {
		delete(m, strings.ToLower(label))
	}
	return nil
}

func (s *Store) ListLabels(ctx context.Context, documentID string) ([]model.Label, error) {
	defer s.rlock(ctx)()
	out := make([]model.Label, 0, len(s.labels[documentID]))
	for _, orig := range s.labels[documentID] {
		out = append(out, model.Label{DocumentID: documentID, Label: orig})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (s *Store) ReplaceLabels(ctx context.Context, documentID string, labels []string) error {
	defer s.wlock(ctx)()
	m := make(map[string]string, len(labels))
	for _, l := range labels {
		m[strings.ToLower(l)] = l
	}
	s.labels[documentID] = m
	return nil
}

func (s *Store) AddLabelsBatch(ctx context.Context, documentID string, labels []string) error {
	defer s.wlock(ctx)()
	if s.labels[documentID] == nil {
		s.labels[documentID] = make(map[string]string)
	}
	for _, l := range labels {
		s.labels[documentID][strings.ToLower(l)] = l
	}
	return nil
}

func (s *Store) SetTag(ctx context.Context, documentID, key string, value *string) error {
	defer s.wlock(ctx)()
	if s.tags[documentID] == nil {
		s.tags[documentID] = make(map[string]*string)
	}
	s.tags[documentID][key] = value
	return nil
}

func (s *Store) RemoveTag(ctx context.Context, documentID, key string) error {
	defer s.wlock(ctx)()
	if m := s.tags[documentID]; m != nil {
		delete(m, key)
	}
	return nil
}

func (s *Store) ListTags(ctx context.Context, documentID string) ([]model.Tag, error) {
	defer s.rlock(ctx)()
	out := make([]model.Tag, 0, len(s.tags[documentID]))
	for k, v := range s.tags[documentID] {
		out = append(out, model.Tag{DocumentID: documentID, Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) ReplaceTags(ctx context.Context, documentID string, tags map[string]*string) error {
	defer s.wlock(ctx)()
	m := make(map[string]*string, len(tags))
	for k, v := range tags {
		m[k] = v
	}
	s.tags[documentID] = m
	return nil
}

func (s *Store) AddTagsBatch(ctx context.Context, documentID string, tags map[string]*string) error {
	defer s.wlock(ctx)()
	if s.tags[documentID] == nil {
		s.tags[documentID] = make(map[string]*string)
	}
	for k, v := range tags {
		s.tags[documentID][k] = v
	}
	return nil
}

func (s *Store) Statistics(ctx context.Context) (model.Statistics, error) {
	defer s.rlock(ctx)()
	stats := model.Statistics{
		DocumentCount: len(s.documents),
		TermCount:     len(s.terms),
		PostingCount:  len(s.postings),
	}
	var total int64
	for _, d := range s.documents {
		total += int64(d.DocumentLength)
	}
	stats.TotalDocSize = total
	if stats.DocumentCount > 0 {
		stats.AverageDocLength = float64(total) / float64(stats.DocumentCount)
	}
	return stats, nil
}

var _ store.Backend = (*Store)(nil)

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/openstore/openstore/internal/model"
	"github.com/openstore/openstore/internal/query"
	bolt "go.etcd.io/bbolt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	packagesBucketKey = []byte("packages")
	usersBucketKey    = []byte("users")
	apiKeysBucketKey  = []byte("apikeys")
)

type boltStore struct {
	db     *bolt.DB
	logger *zap.Logger
	tracer trace.Tracer
}

var _ Store = (*boltStore)(nil)

type BoltConfig struct {
	Path    string
	Logger  *zap.Logger
	Tracer  trace.Tracer
	Timeout time.Duration
}

func NewBolt(cfg *BoltConfig) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = time.Second
	}

	db, err := bolt.Open(cfg.Path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, key := range [][]byte{packagesBucketKey, usersBucketKey, apiKeysBucketKey} {
			if _, err := tx.CreateBucketIfNotExists(key); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("store")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &boltStore{
		db:     db,
		logger: logger,
		tracer: tracer,
	}, nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}

type scored struct {
	pkg   *model.Package
	score float64
}

func (s *boltStore) match(q query.Query) ([]scored, error) {
	var matches []scored
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(packagesBucketKey).ForEach(func(k, v []byte) error {
			var pkg model.Package
			if err := json.Unmarshal(v, &pkg); err != nil {
				s.logger.Error("skipping undecodable package", zap.ByteString("id", k), zap.Error(err))
				return nil
			}

			if !q.Matches(&pkg) {
				return nil
			}

			var score float64
			if q.Search != "" {
				if score = q.Score(&pkg); score <= 0 {
					return nil
				}
			}

			matches = append(matches, scored{pkg: &pkg, score: score})
			return nil
		})
	})
	return matches, err
}

func (s *boltStore) Find(ctx context.Context, q query.Query) ([]*model.Package, int, error) {
	_, span := s.tracer.Start(ctx, "Find")
	defer span.End()

	matches, err := s.match(q)
	if err != nil {
		return nil, 0, err
	}

	count := len(matches)
	sortMatches(matches, q.SortKey())

	if q.Skip > 0 {
		if q.Skip >= len(matches) {
			matches = nil
		} else {
			matches = matches[q.Skip:]
		}
	}

	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	pkgs := make([]*model.Package, len(matches))
	for i, m := range matches {
		pkgs[i] = m.pkg
	}

	span.SetAttributes(attribute.Int("count", count), attribute.Int("returned", len(pkgs)))
	s.logger.Debug("found packages", zap.Int("count", count), zap.Int("returned", len(pkgs)))
	return pkgs, count, nil
}

func (s *boltStore) Count(ctx context.Context, q query.Query) (int, error) {
	_, span := s.tracer.Start(ctx, "Count")
	defer span.End()

	matches, err := s.match(q)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// sortMatches orders by key, a field name optionally prefixed with "-" for
// descending order. Ties and unknown keys fall back to name then id.
func sortMatches(matches []scored, key string) {
	desc := strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")

	byName := func(a, b *model.Package) bool {
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	}

	var less func(a, b scored) (bool, bool)
	switch key {
	case query.SortScore:
		// Relevance is always descending.
		desc = false
		less = func(a, b scored) (bool, bool) { return a.score > b.score, a.score == b.score }
	case "published_date":
		less = func(a, b scored) (bool, bool) {
			return a.pkg.PublishedDate.Before(b.pkg.PublishedDate), a.pkg.PublishedDate.Equal(b.pkg.PublishedDate)
		}
	case "updated_date":
		less = func(a, b scored) (bool, bool) {
			return a.pkg.UpdatedDate.Before(b.pkg.UpdatedDate), a.pkg.UpdatedDate.Equal(b.pkg.UpdatedDate)
		}
	case "downloads", "total_downloads":
		less = func(a, b scored) (bool, bool) {
			ad, bd := a.pkg.TotalDownloads(), b.pkg.TotalDownloads()
			return ad < bd, ad == bd
		}
	default:
		sort.SliceStable(matches, func(i, j int) bool {
			if desc {
				return byName(matches[j].pkg, matches[i].pkg)
			}
			return byName(matches[i].pkg, matches[j].pkg)
		})
		return
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if desc {
			a, b = b, a
		}
		lt, eq := less(a, b)
		if eq {
			return byName(matches[i].pkg, matches[j].pkg)
		}
		return lt
	})
}

func (s *boltStore) Get(ctx context.Context, id string) (*model.Package, error) {
	_, span := s.tracer.Start(ctx, "Get")
	defer span.End()

	var pkg model.Package
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(packagesBucketKey).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &pkg)
	})
	if err != nil {
		return nil, err
	}

	return &pkg, nil
}

func (s *boltStore) GetPublished(ctx context.Context, id string) (*model.Package, error) {
	pkg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !pkg.Published {
		return nil, ErrNotFound
	}
	return pkg, nil
}

func (s *boltStore) Create(ctx context.Context, pkg *model.Package) error {
	_, span := s.tracer.Start(ctx, "Create")
	defer span.End()

	doc := *pkg
	doc.DocVersion = 1

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(packagesBucketKey)
		if b.Get([]byte(doc.ID)) != nil {
			return ErrDuplicate
		}
		return putJSON(b, doc.ID, &doc)
	})
	if err != nil {
		return err
	}

	pkg.DocVersion = doc.DocVersion
	s.logger.Debug("created package", zap.String("id", pkg.ID))
	return nil
}

func (s *boltStore) Update(ctx context.Context, pkg *model.Package) error {
	_, span := s.tracer.Start(ctx, "Update")
	defer span.End()

	doc := *pkg
	doc.DocVersion++
	doc.Revisions = append([]model.Revision(nil), pkg.Revisions...)

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(packagesBucketKey)
		v := b.Get([]byte(doc.ID))
		if v == nil {
			return ErrNotFound
		}

		var stored model.Package
		if err := json.Unmarshal(v, &stored); err != nil {
			return err
		}

		if stored.DocVersion != pkg.DocVersion {
			return ErrConflict
		}

		keepCounters(&doc, &stored)
		return putJSON(b, doc.ID, &doc)
	})
	if err != nil {
		return err
	}

	pkg.DocVersion = doc.DocVersion
	pkg.Downloads = doc.Downloads
	pkg.Revisions = doc.Revisions
	s.logger.Debug("updated package", zap.String("id", pkg.ID), zap.Uint64("docVersion", pkg.DocVersion))
	return nil
}

// keepCounters carries the stored download counters over to doc. Counters
// move independently of DocVersion, the stored values are the current ones.
func keepCounters(doc, stored *model.Package) {
	downloads := make(map[string]int64, len(doc.Downloads)+len(stored.Downloads))
	for k, n := range doc.Downloads {
		downloads[k] = n
	}
	for k, n := range stored.Downloads {
		downloads[k] = n
	}
	doc.Downloads = downloads

	counts := make(map[int]int64, len(stored.Revisions))
	for _, rev := range stored.Revisions {
		counts[rev.Revision] = rev.Downloads
	}
	for i := range doc.Revisions {
		if n, ok := counts[doc.Revisions[i].Revision]; ok {
			doc.Revisions[i].Downloads = n
		}
	}
}

func (s *boltStore) IncrementDownloads(ctx context.Context, id, versionKey string, revision int) error {
	_, span := s.tracer.Start(ctx, "IncrementDownloads")
	defer span.End()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(packagesBucketKey)
		v := b.Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}

		var pkg model.Package
		if err := json.Unmarshal(v, &pkg); err != nil {
			return err
		}

		if pkg.Downloads == nil {
			pkg.Downloads = map[string]int64{}
		}
		pkg.Downloads[versionKey]++

		for i := range pkg.Revisions {
			if pkg.Revisions[i].Revision == revision {
				pkg.Revisions[i].Downloads++
				break
			}
		}

		return putJSON(b, id, &pkg)
	})
}

func (s *boltStore) Stats(ctx context.Context) (*Stats, error) {
	_, span := s.tracer.Start(ctx, "Stats")
	defer span.End()

	published := true
	matches, err := s.match(query.Query{Published: &published})
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Categories: map[string]int{},
		Types:      map[string]int{},
	}
	for _, m := range matches {
		stats.Categories[m.pkg.Category]++
		for _, t := range m.pkg.Types {
			stats.Types[t]++
		}
	}
	return stats, nil
}

func (s *boltStore) GetUserByAPIKey(ctx context.Context, apiKey string) (*model.User, error) {
	if apiKey == "" {
		return nil, ErrNotFound
	}

	var user model.User
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(apiKeysBucketKey).Get([]byte(apiKey))
		if id == nil {
			return ErrNotFound
		}

		v := tx.Bucket(usersBucketKey).Get(id)
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *boltStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(usersBucketKey).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *boltStore) PutUser(ctx context.Context, user *model.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(usersBucketKey)
		keys := tx.Bucket(apiKeysBucketKey)

		if v := users.Get([]byte(user.ID)); v != nil {
			var old model.User
			if err := json.Unmarshal(v, &old); err != nil {
				return err
			}
			if old.APIKey != "" && old.APIKey != user.APIKey {
				if err := keys.Delete([]byte(old.APIKey)); err != nil {
					return err
				}
			}
		}

		if user.APIKey != "" {
			if err := keys.Put([]byte(user.APIKey), []byte(user.ID)); err != nil {
				return err
			}
		}
		return putJSON(users, user.ID, user)
	})
}

func putJSON(b *bolt.Bucket, key string, v any) error {
	row, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), row)
}

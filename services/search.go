package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"boardapp/models"
)

const articleIndexName = "article"

// ArticleIndex is the derived full-text projection of articles. It is
// rebuildable and never authoritative: callers re-check hits against the
// relational store.
type ArticleIndex interface {
	Index(ctx context.Context, article *models.Article) error
	Remove(ctx context.Context, articleID uint) error
	// Search returns the ids of articles on boardID whose content matches
	// keyword, best first.
	Search(ctx context.Context, boardID uint, keyword string) ([]uint, error)
}

type articleDoc struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	BoardID  *uint  `json:"board_id"`
	AuthorID *uint  `json:"author_id"`
}

// OpenSearchIndex backs ArticleIndex with an OpenSearch cluster.
type OpenSearchIndex struct {
	client *opensearch.Client
}

func NewOpenSearchIndex(addr string) (*OpenSearchIndex, error) {
	client, err := opensearch.NewClient(opensearch.Config{Addresses: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}
	return &OpenSearchIndex{client: client}, nil
}

// EnsureIndex creates the article index with its field mappings if it does
// not exist yet.
func (s *OpenSearchIndex) EnsureIndex(ctx context.Context) error {
	exists := opensearchapi.IndicesExistsRequest{Index: []string{articleIndexName}}
	res, err := exists.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	mapping := `{
	  "mappings": {
	    "properties": {
	      "title":     {"type": "text"},
	      "content":   {"type": "text"},
	      "board_id":  {"type": "integer"},
	      "author_id": {"type": "integer"}
	    }
	  }
	}`
	create := opensearchapi.IndicesCreateRequest{
		Index: articleIndexName,
		Body:  strings.NewReader(mapping),
	}
	cres, err := create.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer cres.Body.Close()
	if cres.IsError() {
		return fmt.Errorf("create index: %s", cres.String())
	}
	return nil
}

func (s *OpenSearchIndex) Index(ctx context.Context, article *models.Article) error {
	body, err := json.Marshal(articleDoc{
		Title:    article.Title,
		Content:  article.Content,
		BoardID:  article.BoardID,
		AuthorID: article.AuthorID,
	})
	if err != nil {
		return err
	}
	req := opensearchapi.IndexRequest{
		Index:      articleIndexName,
		DocumentID: strconv.FormatUint(uint64(article.ID), 10),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index article %d: %w", article.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index article %d: %s", article.ID, res.String())
	}
	return nil
}

func (s *OpenSearchIndex) Remove(ctx context.Context, articleID uint) error {
	req := opensearchapi.DeleteRequest{
		Index:      articleIndexName,
		DocumentID: strconv.FormatUint(uint64(articleID), 10),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("remove article %d: %w", articleID, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("remove article %d: %s", articleID, res.String())
	}
	return nil
}

// searchBody is the bool query sent for board-scoped keyword search:
// full-text match on content, exact filter on board_id.
func searchBody(boardID uint, keyword string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":   map[string]any{"match": map[string]any{"content": keyword}},
				"filter": map[string]any{"term": map[string]any{"board_id": boardID}},
			},
		},
	})
}

func (s *OpenSearchIndex) Search(ctx context.Context, boardID uint, keyword string) ([]uint, error) {
	body, err := searchBody(boardID, keyword)
	if err != nil {
		return nil, err
	}
	req := opensearchapi.SearchRequest{
		Index: []string{articleIndexName},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uint, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// MemoryIndex is the in-process ArticleIndex used by tests.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[uint]articleDoc
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[uint]articleDoc)}
}

func (m *MemoryIndex) Index(_ context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[article.ID] = articleDoc{
		Title:    article.Title,
		Content:  article.Content,
		BoardID:  article.BoardID,
		AuthorID: article.AuthorID,
	}
	return nil
}

func (m *MemoryIndex) Remove(_ context.Context, articleID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, articleID)
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, boardID uint, keyword string) ([]uint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uint
	for id, doc := range m.docs {
		if doc.BoardID == nil || *doc.BoardID != boardID {
			continue
		}
		if strings.Contains(strings.ToLower(doc.Content), strings.ToLower(keyword)) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Contains reports whether articleID is indexed. Test hook.
func (m *MemoryIndex) Contains(articleID uint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[articleID]
	return ok
}

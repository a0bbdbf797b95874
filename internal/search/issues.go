// internal/search/issues.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"proco-workers/internal/models"
)

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
	ErrIndexNotFound     = errors.New("INDEX_NOT_FOUND")
	ErrIndexWriteFailed  = errors.New("INDEX_WRITE_FAILED")
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

// IssueMapping is the index definition EnsureIndex creates on startup.
const IssueMapping = `{
  "mappings": {
    "properties": {
      "id":              {"type": "keyword"},
      "tenantId":        {"type": "keyword"},
      "propertyId":      {"type": "keyword"},
      "propertyAddress": {"type": "text"},
      "category":        {"type": "keyword"},
      "status":          {"type": "keyword"},
      "summary":         {"type": "text"},
      "description":     {"type": "text"},
      "vendorId":        {"type": "keyword"},
      "vendorName":      {"type": "text"},
      "estimatedCost":   {"type": "double"},
      "createdAt":       {"type": "date"}
    }
  }
}`

// IssueDocument is the landlord-dashboard view of an issue.
type IssueDocument struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenantId"`
	PropertyID      string          `json:"propertyId"`
	PropertyAddress string          `json:"propertyAddress,omitempty"`
	Category        models.Category `json:"category"`
	Status          models.Status   `json:"status"`
	Summary         string          `json:"summary"`
	Description     string          `json:"description"`
	VendorID        *string         `json:"vendorId,omitempty"`
	VendorName      *string         `json:"vendorName,omitempty"`
	EstimatedCost   *float64        `json:"estimatedCost,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func DocumentFromDetail(d *models.IssueDetail) IssueDocument {
	return IssueDocument{
		ID:              d.ID,
		TenantID:        d.TenantID,
		PropertyID:      d.PropertyID,
		PropertyAddress: d.PropertyAddress,
		Category:        d.Category,
		Status:          d.Status,
		Summary:         d.Summary,
		Description:     d.Description,
		VendorID:        d.VendorID,
		VendorName:      d.VendorName,
		EstimatedCost:   d.EstimatedCost,
		CreatedAt:       d.CreatedAt,
	}
}

type Query struct {
	Text       string
	Category   string
	Status     string
	PropertyID string
	TenantID   string
	From       int
	Size       int
}

type Result struct {
	Issues    []IssueDocument
	TotalHits int64
	Took      int64
}

// IssueIndex reads and writes one Elasticsearch index of issues.
type IssueIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewIssueIndex(client *elasticsearch.Client, index string) *IssueIndex {
	return &IssueIndex{client: client, index: index}
}

func (i *IssueIndex) Name() string { return i.index }

// IndexIssue upserts doc under its issue id.
func (i *IssueIndex) IndexIssue(ctx context.Context, doc IssueDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexWriteFailed, err)
	}

	res, err := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexWriteFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexWriteFailed, res.Status())
	}
	return nil
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source IssueDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (i *IssueIndex) Search(ctx context.Context, q Query) (*Result, error) {
	body, _ := json.Marshal(BuildQuery(q))
	from, size := normalizePage(q.From, q.Size)

	res, err := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		From:  &from,
		Size:  &size,
	}.Do(ctx, i.client)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrSearchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, i.index)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSearchQueryFailed, err)
	}

	out := &Result{
		Issues:    make([]IssueDocument, 0, len(r.Hits.Hits)),
		TotalHits: r.Hits.Total.Value,
		Took:      r.Took,
	}
	for _, h := range r.Hits.Hits {
		out.Issues = append(out.Issues, h.Source)
	}
	return out, nil
}

// BuildQuery renders q as a bool query: free text over summary and
// description, exact filters on the keyword fields, newest first.
func BuildQuery(q Query) map[string]interface{} {
	must := []interface{}{}
	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"summary^2", "description"},
				"type":   "best_fields",
			},
		})
	} else {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	filter := []interface{}{}
	for _, term := range [][2]string{
		{"category", q.Category},
		{"status", q.Status},
		{"propertyId", q.PropertyID},
		{"tenantId", q.TenantID},
	} {
		if term[1] != "" {
			filter = append(filter, map[string]interface{}{
				"term": map[string]interface{}{term[0]: term[1]},
			})
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"createdAt": map[string]interface{}{"order": "desc"}},
		},
	}
}

func normalizePage(from, size int) (int, int) {
	if from < 0 {
		from = 0
	}
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return from, size
}

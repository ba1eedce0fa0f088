// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"

	elastic "gopkg.in/olivere/elastic.v5"
)

// docType is the mapping type used for every bulk request. Elasticsearch
// 5.x bulk APIs still require a type; newer clusters accept any fixed
// value here.
const docType = "_doc"

// ElasticSink submits batches through a live Elasticsearch cluster via
// its bulk API.
type ElasticSink struct {
	Client *elastic.Client
}

// NewElasticSink wraps an already-constructed client. Client
// construction (host, auth, TLS) is an external collaborator's
// concern, not this package's.
func NewElasticSink(client *elastic.Client) *ElasticSink {
	return &ElasticSink{Client: client}
}

// Bulk submits items as a single Elasticsearch bulk request.
func (s *ElasticSink) Bulk(ctx context.Context, items []Item) ([]Result, error) {
	req := s.Client.Bulk()
	for _, it := range items {
		switch it.Action {
		case ActionDelete:
			req.Add(elastic.NewBulkDeleteRequest().Index(it.Index).Type(docType).Id(it.ID))
		default:
			req.Add(elastic.NewBulkIndexRequest().Index(it.Index).Type(docType).Id(it.ID).Doc(it.Source))
		}
	}

	resp, err := req.Do(ctx)
	if err != nil {
		return nil, IndexError{Index: "bulk", Reason: err.Error()}
	}

	results := make([]Result, len(items))
	for i, it := range items {
		results[i] = Result{ID: it.ID, Action: it.Action}
	}

	if resp != nil && resp.Errors {
		for i, byAction := range resp.Items {
			if i >= len(results) {
				break
			}
			for _, item := range byAction {
				if item.Error != nil {
					results[i].Err = IndexError{
						ID:     item.Id,
						Index:  item.Index,
						Reason: item.Error.Reason,
					}
				}
			}
		}
	}

	return results, nil
}

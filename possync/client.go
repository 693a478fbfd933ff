// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Backend is the narrow remote collaborator the sync services depend on.
// Each call succeeds or fails atomically server-side. Implementations must
// surface the already-exists condition on Create as a *BackendError with
// CodeConditionalCheckFailed.
type Backend interface {
	Create(ctx context.Context, typeName string, input map[string]any) (map[string]any, error)
	Update(ctx context.Context, typeName string, input map[string]any) (map[string]any, error)
	Delete(ctx context.Context, typeName string, id string) error
	List(ctx context.Context, typeName string, limit int) ([]map[string]any, error)
}

// GraphQLClient implements Backend over a single authenticated graphql
// HTTP entry point.
type GraphQLClient struct {
	BaseURL string
	Token   func(context.Context) (string, error) // returns JWT
	HTTP    *http.Client
	logger  *slog.Logger
}

// NewGraphQLClient creates a backend client. The token function supplies a
// JWT per request (see JWTAuth.TokenFunc).
func NewGraphQLClient(baseURL string, token func(context.Context) (string, error), logger *slog.Logger) *GraphQLClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphQLClient{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

// GraphQL posts one query to the backend and returns the data map. Backend
// errors are returned as *BackendError with a classified code.
func (c *GraphQLClient) GraphQL(ctx context.Context, query string, variables map[string]any) (map[string]json.RawMessage, error) {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/graphql", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWT token: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(raw))
	}

	var gqlResp graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return nil, fmt.Errorf("failed to decode graphql response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		first := gqlResp.Errors[0]
		return nil, &BackendError{
			Code:    classifyErrorType(first.ErrorType),
			Type:    first.ErrorType,
			Message: first.Message,
		}
	}

	return gqlResp.Data, nil
}

// Create issues the Create<Entity> mutation.
func (c *GraphQLClient) Create(ctx context.Context, typeName string, input map[string]any) (map[string]any, error) {
	data, err := c.GraphQL(ctx, createMutation(typeName), map[string]any{"input": input})
	if err != nil {
		return nil, err
	}
	return decodeObjectField(data, createField(typeName))
}

// Update issues the Update<Entity> mutation.
func (c *GraphQLClient) Update(ctx context.Context, typeName string, input map[string]any) (map[string]any, error) {
	data, err := c.GraphQL(ctx, updateMutation(typeName), map[string]any{"input": input})
	if err != nil {
		return nil, err
	}
	return decodeObjectField(data, updateField(typeName))
}

// Delete issues the Delete<Entity> mutation keyed by the remote id.
func (c *GraphQLClient) Delete(ctx context.Context, typeName string, id string) error {
	_, err := c.GraphQL(ctx, deleteMutation(typeName), map[string]any{"input": map[string]any{"id": id}})
	return err
}

// List pages through the List<Entity> query up to limit records.
func (c *GraphQLClient) List(ctx context.Context, typeName string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = pullPageLimit
	}

	var items []map[string]any
	var nextToken *string
	for {
		vars := map[string]any{"limit": limit}
		if nextToken != nil {
			vars["nextToken"] = *nextToken
		}

		data, err := c.GraphQL(ctx, listQuery(typeName), vars)
		if err != nil {
			return nil, err
		}

		raw, ok := data[listField(typeName)]
		if !ok {
			return nil, fmt.Errorf("graphql response missing field %s", listField(typeName))
		}
		var page listPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("failed to decode list page: %w", err)
		}

		items = append(items, page.Items...)
		if page.NextToken == nil || *page.NextToken == "" || len(items) >= limit {
			break
		}
		nextToken = page.NextToken
	}

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func decodeObjectField(data map[string]json.RawMessage, field string) (map[string]any, error) {
	raw, ok := data[field]
	if !ok || string(raw) == "null" {
		return nil, fmt.Errorf("graphql response missing field %s", field)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", field, err)
	}
	return obj, nil
}
